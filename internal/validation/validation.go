package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/models"
)

// ErrUnauthorizedAction is the sentinel for an authenticated caller
// touching a post they do not own. Handlers must map it to 403, never
// to a plain validation failure.
var ErrUnauthorizedAction = errors.New("Unauthorized action detected.")

var ErrPostNotFound = errors.New("Post does not exist")

var emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Report maps a field name to its first validation failure.
type Report map[string]string

func (r Report) Ok() bool { return len(r) == 0 }

type RegisterRequest struct {
	Username  string `json:"username"   validate:"required"`
	Email     string `json:"email"      validate:"required,emailformat"`
	Password  string `json:"password"   validate:"required,strongpassword"`
	FirstName string `json:"first_name" validate:"required,alphaname"`
	LastName  string `json:"last_name"  validate:"required,alphaname"`
}

type PostRequest struct {
	Title   string `json:"title"   validate:"required,posttitle"`
	Content string `json:"content" validate:"required"`
}

// ModificationContext is what a post mutation is validated against:
// the session user, the targeted post and the author email the caller
// claims to be.
type ModificationContext struct {
	SessionUser *models.User
	PostID      string
	AuthorEmail string
}

type Validator struct {
	DB *gorm.DB
	v  *validator.Validate
}

func New(db *gorm.DB) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("emailformat", func(fl validator.FieldLevel) bool {
		return emailRegex.MatchString(fl.Field().String())
	})
	v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return passwordMessage(fl.Field().String()) == ""
	})
	v.RegisterValidation("alphaname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		for _, r := range name {
			if !unicode.IsLetter(r) {
				return false
			}
		}
		return name != ""
	})
	v.RegisterValidation("posttitle", func(fl validator.FieldLevel) bool {
		title := fl.Field().String()
		for _, r := range title {
			if !unicode.IsDigit(r) {
				return true
			}
		}
		return false
	})

	return &Validator{DB: db, v: v}
}

// ValidateRegistration runs the per-field rules, then the cross-field
// duplicate-email check against the store.
func (val *Validator) ValidateRegistration(req RegisterRequest) Report {
	report := val.structReport(req)

	if _, taken := report["email"]; !taken {
		var existing models.User
		err := val.DB.Where("email = ?", req.Email).First(&existing).Error
		if err == nil {
			report["email"] = "User with this email already exists."
		}
	}

	return report
}

func (val *Validator) ValidatePost(req PostRequest) Report {
	return val.structReport(req)
}

// ValidateModification re-checks, beyond the author gate, that the
// post exists, that the claimed author email is the session user's and
// that the stored post is really theirs.
func (val *Validator) ValidateModification(ctx ModificationContext) (*models.Post, error) {
	id, err := uuid.Parse(ctx.PostID)
	if err != nil {
		return nil, ErrPostNotFound
	}

	var post models.Post
	if err := val.DB.Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	if ctx.SessionUser == nil || ctx.AuthorEmail != ctx.SessionUser.Email {
		return nil, ErrUnauthorizedAction
	}
	if post.AuthorID != ctx.SessionUser.ID {
		return nil, ErrUnauthorizedAction
	}

	return &post, nil
}

func (val *Validator) structReport(req any) Report {
	report := Report{}
	err := val.v.Struct(req)
	if err == nil {
		return report
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		report["non_field_errors"] = err.Error()
		return report
	}

	for _, fe := range fieldErrors {
		if _, seen := report[fe.Field()]; seen {
			continue
		}
		report[fe.Field()] = messageFor(fe)
	}
	return report
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "emailformat":
		return "Invalid email address."
	case "alphaname":
		return "Your first name can only contain characters."
	case "strongpassword":
		if msg := passwordMessage(fe.Value().(string)); msg != "" {
			return msg
		}
		return "Invalid password."
	case "posttitle":
		return "Title cannot be empty or numbers only."
	default:
		return "Invalid value."
	}
}

// passwordMessage returns the empty string for a valid password, or
// the reason it is rejected. Valid means length in [8,128] with at
// least one letter and one digit.
func passwordMessage(password string) string {
	if len(password) < 8 {
		return "Password should be longer than 8 characters|numbers|special characters."
	}
	if len(password) > 128 {
		return "Password should be less than 128 characters|numbers|special characters."
	}

	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return "Password should contain at least one character A-Z a-z."
	}
	if !hasDigit {
		return "Password should contain at least one number 0-9."
	}
	return ""
}
