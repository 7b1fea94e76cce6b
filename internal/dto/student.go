package dto

// CreateStudentRequest registers a swimmer at an initial level.
type CreateStudentRequest struct {
	FullName string  `json:"full_name" validate:"required,max=200"`
	Level    string  `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Reason   *string `json:"reason" validate:"omitempty,max=500"`
}

// EvolutionQuery scopes the analytics endpoints.
type EvolutionQuery struct {
	StrokeType string `form:"stroke_type" validate:"omitempty,oneof=front_crawl backstroke breaststroke butterfly"`
	TimeRange  string `form:"time_range" validate:"omitempty,oneof=3months 6months 1year all"`
	Format     string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
