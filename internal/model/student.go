package model

// StudentProfile 学生档案表 — 对应 student_profiles
// 主键与身份账号 ID 一致；考勤核心只读取 Branch 与 Group
type StudentProfile struct {
	StudentID       string `gorm:"type:uuid;primaryKey"                    json:"student_id"`
	CollegeID       string `gorm:"type:varchar(20);not null;uniqueIndex"   json:"college_id"` // 入学年份 + 班级 + 三位学号，如 2026CSB001
	Name            string `gorm:"type:varchar(100);not null"              json:"name"`
	Year            string `gorm:"type:varchar(4);not null"                json:"year"`
	Branch          string `gorm:"type:varchar(10);not null"               json:"branch"`
	RollNumber      string `gorm:"type:varchar(10);not null"               json:"roll_number"`
	Group           string `gorm:"column:student_group;type:varchar(3);not null" json:"group"` // A | B
	AuthEmail       string `gorm:"type:varchar(255);not null"              json:"auth_email"`
	CurrentSemester int    `gorm:"not null;default:2"                      json:"current_semester"`
	BaseModel
}

// TableName 指定表名
func (StudentProfile) TableName() string { return "student_profiles" }

// StudentCredential 本地身份凭据表 — 对应 student_credentials
type StudentCredential struct {
	AccountID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"account_id"`
	AuthEmail    string `gorm:"type:varchar(255);not null;uniqueIndex"        json:"auth_email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                    json:"-"`
	DisplayName  string `gorm:"type:varchar(100);not null;default:''"         json:"display_name"`
	BaseModel
}

// TableName 指定表名
func (StudentCredential) TableName() string { return "student_credentials" }
