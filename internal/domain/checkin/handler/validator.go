package handler

import (
	"fitclub/internal/domain/checkin/model"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 注册 checkin_method 校验规则，人工登记只接受 manual 和 admin_override
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("checkin_method", validateManualMethod)
		}
	})
}

func validateManualMethod(fl validator.FieldLevel) bool {
	method := model.Method(fl.Field().String())
	return method == model.MethodManual || method == model.MethodAdminOverride
}
