package domain

// DirectoryUser is a read-only snapshot of a workforce directory entry.
type DirectoryUser struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	Mail           string   `json:"mail"`
	JobTitle       string   `json:"jobTitle"`
	Department     string   `json:"department"`
	CompanyName    string   `json:"companyName"`
	BusinessPhones []string `json:"businessPhones"`
}

// Fields maps the directory record onto profile attributes. The first
// business phone wins.
func (u DirectoryUser) Fields() DirectoryFields {
	var phone string
	if len(u.BusinessPhones) > 0 {
		phone = u.BusinessPhones[0]
	}
	return DirectoryFields{
		FullName:   u.DisplayName,
		Title:      u.JobTitle,
		Department: u.Department,
		Company:    u.CompanyName,
		Phone:      phone,
		ExternalID: u.ID,
	}
}

// SyncResult counts what a reconciliation did.
type SyncResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

func (r SyncResult) Total() int {
	return r.Inserted + r.Updated + r.Unchanged + r.Skipped
}
