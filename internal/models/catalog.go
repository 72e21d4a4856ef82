package models

// AcademicPeriod is a school year or term that scopes courses, levels and classes.
type AcademicPeriod struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Segment string `db:"segment" json:"segment"`
	IsOpen  bool   `db:"is_open" json:"isOpen"`
}

// Course is offered within an academic period and groups levels.
type Course struct {
	ID       string  `db:"id" json:"id"`
	PeriodID string  `db:"period_id" json:"periodId"`
	Name     string  `db:"name" json:"name"`
	Levels   []Level `db:"-" json:"levels"`
}

// Level is a grade or series within a course.
type Level struct {
	ID         string  `db:"id" json:"id"`
	CourseID   string  `db:"course_id" json:"courseId"`
	Name       string  `db:"name" json:"name"`
	ContractID *string `db:"contract_id" json:"contractId,omitempty"`
}

// ClassGroup is a concrete class of a level within a period.
type ClassGroup struct {
	ID       string `db:"id" json:"id"`
	LevelID  string `db:"level_id" json:"levelId"`
	PeriodID string `db:"period_id" json:"periodId"`
	Name     string `db:"name" json:"name"`
}

// Contract is a fee template attached to a level in a period.
type Contract struct {
	ID                     string        `db:"id" json:"id"`
	Name                   string        `db:"name" json:"name"`
	MonthlyFee             float64       `db:"monthly_fee" json:"monthlyFee"`
	EnrollmentFee          float64       `db:"enrollment_fee" json:"enrollmentFee"`
	MonthlyInstallments    int           `db:"monthly_installments" json:"monthlyInstallments"`
	EnrollmentInstallments int           `db:"enrollment_installments" json:"enrollmentInstallments"`
	PaymentType            PaymentMethod `db:"payment_type" json:"paymentType"`
}

// Scholarship is a discount template; it excludes individual discounts.
type Scholarship struct {
	ID                string  `db:"id" json:"id"`
	Name              string  `db:"name" json:"name"`
	MonthlyPercent    float64 `db:"monthly_percent" json:"monthlyPercent"`
	EnrollmentPercent float64 `db:"enrollment_percent" json:"enrollmentPercent"`
	Active            bool    `db:"active" json:"active"`
}
