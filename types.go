package goLearn

import (
	"net/url"
	"strconv"
	"time"
)

// User is an account as returned by the backend.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Account roles.
const (
	RoleLearner    = "learner"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Course publication states.
const (
	CourseDraft     = "draft"
	CoursePublished = "published"
	CourseArchived  = "archived"
)

// Course is a marketplace listing with its curriculum.
type Course struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug,omitempty"`
	Subtitle        string    `json:"subtitle,omitempty"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Level           string    `json:"level,omitempty"`
	Language        string    `json:"language,omitempty"`
	Price           float64   `json:"price"`
	Currency        string    `json:"currency,omitempty"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	InstructorID    string    `json:"instructorId,omitempty"`
	Instructor      *User     `json:"instructor,omitempty"`
	Status          string    `json:"status,omitempty"`
	Rating          float64   `json:"rating,omitempty"`
	EnrollmentCount int       `json:"enrollmentCount,omitempty"`
	Sections        []Section `json:"sections,omitempty"`
	FAQs            []FAQ     `json:"faqs,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

// Section groups lectures inside a course curriculum.
type Section struct {
	ID       string    `json:"id,omitempty"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	Lectures []Lecture `json:"lectures,omitempty"`
}

// Lecture is a single video lesson.
type Lecture struct {
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"`
	VideoURL        string `json:"videoUrl,omitempty"`
	DurationSeconds int    `json:"duration,omitempty"`
	Preview         bool   `json:"isPreview,omitempty"`
	Order           int    `json:"order"`
}

// FAQ is a question/answer pair shown on the course page.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CourseInput is the body of create and update calls. Zero fields are omitted so that an
// update only touches what is set.
type CourseInput struct {
	Title        string    `json:"title,omitempty"`
	Subtitle     string    `json:"subtitle,omitempty"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	Level        string    `json:"level,omitempty"`
	Language     string    `json:"language,omitempty"`
	Price        *float64  `json:"price,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Sections     []Section `json:"sections,omitempty"`
	FAQs         []FAQ     `json:"faqs,omitempty"`
}

// ListOptions pages through a collection. Page is 1-based.
type ListOptions struct {
	Page  int
	Limit int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

// CourseQuery filters the course catalogue.
type CourseQuery struct {
	ListOptions
	Search   string
	Category string
	Level    string
	Sort     string
}

func (q CourseQuery) values() url.Values {
	v := q.ListOptions.values()
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Level != "" {
		v.Set("level", q.Level)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// Page is one page of a paginated collection.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// HasNext reports whether another page exists after this one.
func (p *Page[T]) HasNext() bool {
	if p == nil || p.Limit <= 0 {
		return false
	}
	return p.Page*p.Limit < p.Total
}

// Enrollment states.
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
)

// Enrollment tracks a learner's progress through a course.
type Enrollment struct {
	ID                string     `json:"id"`
	CourseID          string     `json:"courseId"`
	Course            *Course    `json:"course,omitempty"`
	UserID            string     `json:"userId"`
	Progress          float64    `json:"progress"`
	CompletedLectures []string   `json:"completedLectures,omitempty"`
	Status            string     `json:"status"`
	EnrolledAt        time.Time  `json:"enrolledAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// ProgressUpdate records activity on one lecture.
type ProgressUpdate struct {
	LectureID       string `json:"lectureId"`
	Completed       bool   `json:"completed"`
	PositionSeconds int    `json:"position,omitempty"`
}

// Certificate is issued when an enrollment completes.
type Certificate struct {
	ID                string    `json:"id"`
	CourseID          string    `json:"courseId"`
	CourseTitle       string    `json:"courseTitle"`
	UserID            string    `json:"userId"`
	LearnerName       string    `json:"learnerName"`
	CertificateNumber string    `json:"certificateNumber"`
	IssuedAt          time.Time `json:"issuedAt"`
}

// Upload purposes understood by the backend.
const (
	UploadThumbnail = "thumbnail"
	UploadVideo     = "lecture_video"
	UploadAvatar    = "avatar"
)

// UploadRequest asks the backend for a presigned upload URL.
type UploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Purpose     string `json:"purpose"`
}

// PresignedUpload is a short-lived, pre-authorised storage URL.
type PresignedUpload struct {
	UploadURL string            `json:"uploadUrl"`
	FileURL   string            `json:"fileUrl"`
	Key       string            `json:"key"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt"`
}
