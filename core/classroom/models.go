package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/darasa/core"
	"github.com/mwalimu/darasa/core/user"
)

type Classroom struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Member is a classroom membership row joined with its user.
type Member struct {
	User       user.User `json:"user"`
	AssignedAt time.Time `json:"assigned_at"` // UTC
}

// MemberRole discriminates the two membership join tables.
type MemberRole string

const (
	MemberTeacher MemberRole = "teacher"
	MemberStudent MemberRole = "student"
)

// NewClassroom contains information needed to create a new Classroom.
type NewClassroom struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClassroom defines what information may be provided to modify an existing Classroom.
type UpdateClassroom struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (uc *UpdateClassroom) Validate(validate *validator.Validate, orig Classroom) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if desc := core.CleanString(uc.Description); desc != "" {
		uc.Description = desc
	} else {
		uc.Description = orig.Description
	}
	return validate.Struct(uc)
}

// AddMember identifies the user to add to a classroom's membership.
type AddMember struct {
	UserID string `json:"user_id" validate:"required"`
}

func (am *AddMember) Validate(validate *validator.Validate) error {
	am.UserID = core.CleanString(am.UserID)
	return validate.Struct(am)
}

type QueryFilter struct {
	Search    string `query:"search"`
	IsActive  *bool  `query:"is_active"`
	CreatorID string `query:"-"`
	TeacherID string `query:"-"`
	StudentID string `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.IsActive == nil && qf.CreatorID == "" && qf.TeacherID == "" && qf.StudentID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
