package models

// UserProfile is the collaborator-provided applicant profile adapters use to
// fill application forms. Fetched from the tracker backend, never stored here.
type UserProfile struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	ResumeURL string `json:"resume_url"`
	Headline  string `json:"headline,omitempty"`
}
