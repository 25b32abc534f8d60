// Package telegram 校验 Telegram WebApp 登录数据 (initData) 的签名
package telegram

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const hashField = "hash"

var (
	ErrMissingHash      = errors.New("telegram: hash field is missing")
	ErrInvalidSignature = errors.New("telegram: signature mismatch")
	ErrAuthDateExpired  = errors.New("telegram: auth_date is too old")
	ErrMissingUser      = errors.New("telegram: user is missing")
)

// User Telegram 用户信息
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

// InitData 校验通过后的登录数据
type InitData struct {
	User     User
	AuthDate time.Time
	QueryID  string
}

// BuildCheckString 生成待签名字符串：
// 去掉 hash 后按 key 字典序排序，每项渲染为 key=value，以换行连接。
// value 必须是原样的字符串，对象类型的值不做二次排序。
func BuildCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == hashField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// FieldsFromQuery 解析 WebApp 传来的 initData 查询串
func FieldsFromQuery(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("telegram: parse init data: %w", err)
	}
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// FieldsFromJSON 解析 JSON 形式的登录数据。
// 字符串取其内容，其余类型 (数字、布尔、对象) 保留原始 JSON 文本，仅去掉空白，
// 与前端 JSON.stringify 的输出保持一致。
func FieldsFromJSON(raw []byte) (map[string]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("telegram: parse payload: %w", err)
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		if len(v) > 0 && v[0] == '"' {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("telegram: field %s: %w", k, err)
			}
			fields[k] = s
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return nil, fmt.Errorf("telegram: field %s: %w", k, err)
		}
		fields[k] = buf.String()
	}
	return fields, nil
}

// secretKey WebApp 规则：HMAC_SHA256(key="WebAppData", data=botToken)
func secretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// Sign 计算 fields 对应的 hash (十六进制)
func Sign(botToken string, fields map[string]string) string {
	return hex.EncodeToString(signature(botToken, fields))
}

// signature 原始 HMAC 字节，Sign 与 Verify 共用
func signature(botToken string, fields map[string]string) []byte {
	mac := hmac.New(sha256.New, secretKey(botToken))
	mac.Write([]byte(BuildCheckString(fields)))
	return mac.Sum(nil)
}

// Verifier 登录数据校验器
type Verifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

// NewVerifier maxAge 为 0 时不校验 auth_date
func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	return &Verifier{botToken: botToken, maxAge: maxAge, now: time.Now}
}

// Verify 校验签名与时效，并解析出用户信息
func (v *Verifier) Verify(fields map[string]string) (*InitData, error) {
	got, ok := fields[hashField]
	if !ok || got == "" {
		return nil, ErrMissingHash
	}
	gotBytes, err := hex.DecodeString(got)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if !hmac.Equal(gotBytes, signature(v.botToken, fields)) {
		return nil, ErrInvalidSignature
	}

	data := &InitData{QueryID: fields["query_id"]}
	if raw, ok := fields["auth_date"]; ok {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram: invalid auth_date: %w", err)
		}
		data.AuthDate = time.Unix(sec, 0)
	}
	if v.maxAge > 0 && (data.AuthDate.IsZero() || v.now().Sub(data.AuthDate) > v.maxAge) {
		return nil, ErrAuthDateExpired
	}

	user, err := parseUser(fields)
	if err != nil {
		return nil, err
	}
	data.User = *user
	return data, nil
}

// parseUser WebApp 的用户信息在 user 字段里，Login Widget 则是平铺字段
func parseUser(fields map[string]string) (*User, error) {
	var u User
	if raw, ok := fields["user"]; ok {
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("telegram: invalid user: %w", err)
		}
	} else if raw, ok := fields["id"]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram: invalid id: %w", err)
		}
		u = User{
			ID:        id,
			FirstName: fields["first_name"],
			LastName:  fields["last_name"],
			Username:  fields["username"],
			PhotoURL:  fields["photo_url"],
		}
	}
	if u.ID == 0 {
		return nil, ErrMissingUser
	}
	return &u, nil
}
