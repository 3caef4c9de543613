package dto

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"` // Cookie 模式下可不返回
	ExpiresIn    int             `json:"expires_in"`              // Access Token 有效期（秒）
	RefreshTTL   int             `json:"refresh_expires_in"`      // Refresh Token 有效期（秒），用于 Cookie Max-Age
	Student      StudentResponse `json:"student"`
}

// RegisterResponse 注册成功响应（注册后不自动登录）
type RegisterResponse struct {
	ID        string `json:"id"`
	CollegeID string `json:"college_id"`
	Name      string `json:"name"`
}

// StudentResponse 学生档案
type StudentResponse struct {
	ID              string `json:"id"`
	CollegeID       string `json:"college_id"`
	Name            string `json:"name"`
	Year            string `json:"year"`
	Branch          string `json:"branch"`
	RollNumber      string `json:"roll_number"`
	Group           string `json:"group"`
	CurrentSemester int    `json:"current_semester"`
	CreatedAt       string `json:"created_at,omitempty"`
}
