package apitest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type lecture struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	VideoURL  string `json:"videoUrl,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	IsPreview bool   `json:"isPreview,omitempty"`
	Order     int    `json:"order"`
}

type section struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	Lectures []lecture `json:"lectures,omitempty"`
}

type faq struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type course struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Subtitle        string    `json:"subtitle,omitempty"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Level           string    `json:"level,omitempty"`
	Language        string    `json:"language,omitempty"`
	Price           float64   `json:"price"`
	Currency        string    `json:"currency,omitempty"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	InstructorID    string    `json:"instructorId"`
	Status          string    `json:"status"`
	EnrollmentCount int       `json:"enrollmentCount"`
	Sections        []section `json:"sections,omitempty"`
	FAQs            []faq     `json:"faqs,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type courseInput struct {
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Level        string    `json:"level"`
	Language     string    `json:"language"`
	Price        *float64  `json:"price"`
	Currency     string    `json:"currency"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Sections     []section `json:"sections"`
	FAQs         []faq     `json:"faqs"`
}

type enrollment struct {
	ID                string     `json:"id"`
	CourseID          string     `json:"courseId"`
	Course            *course    `json:"course,omitempty"`
	UserID            string     `json:"userId"`
	Progress          float64    `json:"progress"`
	CompletedLectures []string   `json:"completedLectures"`
	Status            string     `json:"status"`
	EnrolledAt        time.Time  `json:"enrolledAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

type certificate struct {
	ID                string    `json:"id"`
	CourseID          string    `json:"courseId"`
	CourseTitle       string    `json:"courseTitle"`
	UserID            string    `json:"userId"`
	LearnerName       string    `json:"learnerName"`
	CertificateNumber string    `json:"certificateNumber"`
	IssuedAt          time.Time `json:"issuedAt"`
}

func (s *Server) seed() {
	s.addAccountLocked("Lena Learner", LearnerEmail, Password, "learner")
	instructor := s.addAccountLocked("Ian Instructor", InstructorEmail, Password, "instructor")

	now := time.Now().UTC()
	c := &course{
		ID:           PublishedCourseID,
		Title:        "Go Basics",
		Slug:         "go-basics",
		Subtitle:     "Types, functions and goroutines",
		Category:     "programming",
		Level:        "beginner",
		Language:     "en",
		Price:        19.99,
		Currency:     "USD",
		InstructorID: instructor.ID,
		Status:       "published",
		Sections: []section{{
			ID:    "section-1",
			Title: "Getting started",
			Order: 1,
			Lectures: []lecture{
				{ID: PublishedLecture1, Title: "Installing Go", Duration: 300, IsPreview: true, Order: 1},
				{ID: PublishedLecture2, Title: "Hello, world", Duration: 420, Order: 2},
			},
		}},
		FAQs:      []faq{{Question: "Do I need experience?", Answer: "No."}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.courses[c.ID] = c
	s.courseOrder = append(s.courseOrder, c.ID)
}

func slugify(title string) string {
	return strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, title), "-")
}

/*
====================================
COURSES
====================================
*/

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	category, level := q.Get("category"), q.Get("level")
	page, limit := pageParams(r)

	s.mu.Lock()
	var items []course
	for _, id := range s.courseOrder {
		c := s.courses[id]
		if c.Status != "published" {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) {
			continue
		}
		if category != "" && c.Category != category {
			continue
		}
		if level != "" && c.Level != level {
			continue
		}
		items = append(items, *c)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, paginate(items, page, limit))
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	acc := s.optionalAccount(r)

	s.mu.Lock()
	c, ok := s.courses[r.PathValue("id")]
	var cp course
	if ok {
		cp = *c
	}
	s.mu.Unlock()

	if !ok || (cp.Status != "published" && (acc == nil || acc.ID != cp.InstructorID)) {
		writeError(w, http.StatusNotFound, "not_found", "course not found")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request, acc *account) {
	if acc.Role != "instructor" {
		writeError(w, http.StatusForbidden, "forbidden", "only instructors can create courses")
		return
	}
	var in courseInput
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "title is required")
		return
	}

	now := time.Now().UTC()
	c := &course{
		ID:           uuid.NewString(),
		Slug:         slugify(in.Title),
		InstructorID: acc.ID,
		Status:       "draft",
		CreatedAt:    now,
	}
	applyCourseInput(c, in)

	s.mu.Lock()
	s.courses[c.ID] = c
	s.courseOrder = append(s.courseOrder, c.ID)
	cp := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request, acc *account) {
	var in courseInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	c, status := s.ownedCourseLocked(r.PathValue("id"), acc)
	if status != 0 {
		s.mu.Unlock()
		writeError(w, status, http.StatusText(status), "cannot update course")
		return
	}
	applyCourseInput(c, in)
	cp := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request, acc *account) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, status := s.ownedCourseLocked(id, acc)
	if status == 0 {
		delete(s.courses, id)
		for i, cid := range s.courseOrder {
			if cid == id {
				s.courseOrder = append(s.courseOrder[:i], s.courseOrder[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, http.StatusText(status), "cannot delete course")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishCourse(w http.ResponseWriter, r *http.Request, acc *account) {
	s.mu.Lock()
	c, status := s.ownedCourseLocked(r.PathValue("id"), acc)
	if status == 0 && countLectures(c) == 0 {
		status = http.StatusUnprocessableEntity
	}
	if status != 0 {
		s.mu.Unlock()
		writeError(w, status, http.StatusText(status), "cannot publish course")
		return
	}
	c.Status = "published"
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleInstructorCourses(w http.ResponseWriter, r *http.Request, acc *account) {
	page, limit := pageParams(r)
	s.mu.Lock()
	var items []course
	for _, id := range s.courseOrder {
		if c := s.courses[id]; c.InstructorID == acc.ID {
			items = append(items, *c)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(items, page, limit))
}

func (s *Server) ownedCourseLocked(id string, acc *account) (*course, int) {
	c, ok := s.courses[id]
	if !ok {
		return nil, http.StatusNotFound
	}
	if c.InstructorID != acc.ID {
		return nil, http.StatusForbidden
	}
	return c, 0
}

func applyCourseInput(c *course, in courseInput) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Title, in.Title)
	set(&c.Subtitle, in.Subtitle)
	set(&c.Description, in.Description)
	set(&c.Category, in.Category)
	set(&c.Level, in.Level)
	set(&c.Language, in.Language)
	set(&c.Currency, in.Currency)
	set(&c.ThumbnailURL, in.ThumbnailURL)
	if in.Price != nil {
		c.Price = *in.Price
	}
	if in.Sections != nil {
		c.Sections = in.Sections
		for i := range c.Sections {
			if c.Sections[i].ID == "" {
				c.Sections[i].ID = uuid.NewString()
			}
			for j := range c.Sections[i].Lectures {
				if c.Sections[i].Lectures[j].ID == "" {
					c.Sections[i].Lectures[j].ID = uuid.NewString()
				}
			}
		}
	}
	if in.FAQs != nil {
		c.FAQs = in.FAQs
	}
	c.UpdatedAt = time.Now().UTC()
}

func countLectures(c *course) int {
	n := 0
	for _, sec := range c.Sections {
		n += len(sec.Lectures)
	}
	return n
}

/*
====================================
ENROLLMENTS / CERTIFICATES
====================================
*/

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, acc *account) {
	courseID := r.PathValue("id")

	s.mu.Lock()
	c, ok := s.courses[courseID]
	if !ok || c.Status != "published" {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "not_found", "course not found")
		return
	}
	for _, e := range s.enrollments {
		if e.UserID == acc.ID && e.CourseID == courseID {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "already_enrolled", "already enrolled in this course")
			return
		}
	}
	e := &enrollment{
		ID:                uuid.NewString(),
		CourseID:          courseID,
		UserID:            acc.ID,
		CompletedLectures: []string{},
		Status:            "active",
		EnrolledAt:        time.Now().UTC(),
	}
	s.enrollments[e.ID] = e
	c.EnrollmentCount++
	cp := *e
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request, acc *account) {
	page, limit := pageParams(r)
	s.mu.Lock()
	var items []enrollment
	for _, e := range s.enrollments {
		if e.UserID == acc.ID {
			cp := *e
			if c, ok := s.courses[e.CourseID]; ok {
				cc := *c
				cp.Course = &cc
			}
			items = append(items, cp)
		}
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].EnrolledAt.Before(items[j].EnrolledAt) })
	writeJSON(w, http.StatusOK, paginate(items, page, limit))
}

func (s *Server) handleGetEnrollment(w http.ResponseWriter, r *http.Request, acc *account) {
	s.mu.Lock()
	e, ok := s.enrollments[r.PathValue("id")]
	var cp enrollment
	if ok {
		cp = *e
	}
	s.mu.Unlock()

	if !ok || cp.UserID != acc.ID {
		writeError(w, http.StatusNotFound, "not_found", "enrollment not found")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, acc *account) {
	var in struct {
		LectureID string `json:"lectureId"`
		Completed bool   `json:"completed"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	e, ok := s.enrollments[r.PathValue("id")]
	if !ok || e.UserID != acc.ID {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "not_found", "enrollment not found")
		return
	}
	c := s.courses[e.CourseID]
	if c == nil || !hasLecture(c, in.LectureID) {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "unknown lecture")
		return
	}

	if in.Completed && !contains(e.CompletedLectures, in.LectureID) {
		e.CompletedLectures = append(e.CompletedLectures, in.LectureID)
	}
	total := countLectures(c)
	e.Progress = float64(len(e.CompletedLectures)) * 100 / float64(total)
	if len(e.CompletedLectures) == total && e.Status != "completed" {
		now := time.Now().UTC()
		e.Status = "completed"
		e.CompletedAt = &now
		cert := &certificate{
			ID:                uuid.NewString(),
			CourseID:          c.ID,
			CourseTitle:       c.Title,
			UserID:            acc.ID,
			LearnerName:       acc.Name,
			CertificateNumber: fmt.Sprintf("GL-%06d", len(s.certificates)+1),
			IssuedAt:          now,
		}
		s.certificates[cert.ID] = cert
	}
	cp := *e
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleListCertificates(w http.ResponseWriter, r *http.Request, acc *account) {
	page, limit := pageParams(r)
	s.mu.Lock()
	var items []certificate
	for _, c := range s.certificates {
		if c.UserID == acc.ID {
			items = append(items, *c)
		}
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CertificateNumber < items[j].CertificateNumber })
	writeJSON(w, http.StatusOK, paginate(items, page, limit))
}

func (s *Server) certificateFor(id string, acc *account) (certificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certificates[id]
	if !ok || c.UserID != acc.ID {
		return certificate{}, false
	}
	return *c, true
}

func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request, acc *account) {
	c, ok := s.certificateFor(r.PathValue("id"), acc)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "certificate not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CertificatePDF renders the placeholder document served by the download endpoint.
func CertificatePDF(number, learner, course string) []byte {
	return []byte(fmt.Sprintf("%%PDF-1.4\n%% goLearn certificate %s\n%% %s completed %s\n%%%%EOF\n", number, learner, course))
}

func (s *Server) handleDownloadCertificate(w http.ResponseWriter, r *http.Request, acc *account) {
	c, ok := s.certificateFor(r.PathValue("id"), acc)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "certificate not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.CertificateNumber+".pdf"))
	_, _ = w.Write(CertificatePDF(c.CertificateNumber, c.LearnerName, c.CourseTitle))
}

func hasLecture(c *course, id string) bool {
	for _, sec := range c.Sections {
		for _, l := range sec.Lectures {
			if l.ID == id {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
