package models

// StartAutoApplyRequest is the request payload for starting an automation session
type StartAutoApplyRequest struct {
	JobTitles        []string    `json:"jobTitles" validate:"required,min=1,dive,required"`
	Locations        []string    `json:"locations" validate:"required,min=1,dive,required"`
	SalaryRange      SalaryRange `json:"salaryRange"`
	ExcludeCompanies []string    `json:"excludeCompanies"`
	IncludeRemote    bool        `json:"includeRemote"`
}

// Criteria converts the request payload into the immutable criteria snapshot
func (r *StartAutoApplyRequest) Criteria() SearchCriteria {
	return SearchCriteria{
		JobTitles:        r.JobTitles,
		Locations:        r.Locations,
		SalaryRange:      r.SalaryRange,
		ExcludeCompanies: r.ExcludeCompanies,
		IncludeRemote:    r.IncludeRemote,
	}
}
