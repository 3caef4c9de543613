package dto

// ── 认证模块 DTO ──

// RegisterRequest 学生注册请求
// 学号由 year + branch + roll_number 拼出，不由客户端直接提交
type RegisterRequest struct {
	Name       string `json:"name"        binding:"required,min=2,max=100"`
	Year       string `json:"year"        binding:"required,len=4,numeric"`
	Branch     string `json:"branch"      binding:"required,alpha,max=10"`
	RollNumber string `json:"roll_number" binding:"required,numeric,max=3"`
	Group      string `json:"group"       binding:"required"`
	Password   string `json:"password"    binding:"required,max=72"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	CollegeID  string `json:"college_id" binding:"required,max=20"`
	Password   string `json:"password"   binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"` // 非 Cookie 模式时使用
}
