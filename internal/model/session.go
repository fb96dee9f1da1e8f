package model

// Session は認証済みユーザーの最小限の情報を表す。
// 識別プロバイダーが認証済みプリンシパルを通知している間だけ存在する。
type Session struct {
	UserID string  `json:"uid"`
	Email  *string `json:"email"`
}

// Equal は同一のプリンシパルを指すかどうかを返す。nil同士は等しい。
func (s *Session) Equal(other *Session) bool {
	if s == nil || other == nil {
		return s == nil && other == nil
	}
	if s.UserID != other.UserID {
		return false
	}
	if s.Email == nil || other.Email == nil {
		return s.Email == nil && other.Email == nil
	}
	return *s.Email == *other.Email
}

// EmailOrEmpty はメールアドレスを返す。未設定の場合は空文字列。
func (s *Session) EmailOrEmpty() string {
	if s == nil || s.Email == nil {
		return ""
	}
	return *s.Email
}
