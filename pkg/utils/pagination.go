package utils

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Pagination 分页请求参数，查询串 ?page=&limit=
type Pagination struct {
	Page  int `json:"page" form:"page" binding:"omitempty,min=0"`
	Limit int `json:"limit" form:"limit" binding:"omitempty,min=0"`
}

// PageResult 分页响应结果
type PageResult struct {
	List    interface{} `json:"list"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"hasMore"`
}

// GetPageOffset 规范化页码和页大小，返回偏移量与页大小
func (p *Pagination) GetPageOffset() (int, int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return (p.Page - 1) * p.Limit, p.Limit
}

// NewPageResult 按已规范化的分页参数组装结果
func NewPageResult(list interface{}, total int64, p Pagination) PageResult {
	return PageResult{
		List:    list,
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		HasMore: int64(p.Page*p.Limit) < total,
	}
}
