package model

// swagger:model Course
type Course struct {
	BaseModel
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	TeacherID   uint   `gorm:"index;type:bigint unsigned" json:"teacherId"`
	Teacher     *User  `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// Enrollment 学生选课记录，(CourseID, UserID) 唯一
type Enrollment struct {
	BaseModel
	CourseID uint `gorm:"index;type:bigint unsigned;uniqueIndex:idx_course_user" json:"courseId"`
	UserID   uint `gorm:"index;type:bigint unsigned;uniqueIndex:idx_course_user" json:"userId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
