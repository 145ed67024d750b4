package catalog

// Subject is a tutor-owned subject offering. Names are unique per tutor,
// not globally.
type Subject struct {
	SubjectID string  `gorm:"type:uuid;primaryKey" json:"subject_id"`
	Name      string  `gorm:"column:subject_name;not null;index" json:"subject_name"`
	TutorID   string  `gorm:"type:uuid;not null;index" json:"tutor_id"`
	Topics    []Topic `gorm:"foreignKey:SubjectID" json:"topics,omitempty"`
}

// Topic exists only as a child of exactly one subject.
type Topic struct {
	TopicID   string `gorm:"type:uuid;primaryKey" json:"topic_id"`
	SubjectID string `gorm:"type:uuid;not null;index" json:"subject_id"`
	Title     string `gorm:"column:topic_title;not null" json:"topic_title"`
}

// Expertise, Affiliation, Social and Availability are flat tutor-owned
// collections replaced wholesale on update. They have no dependents, so
// deletion never needs a reference check.
type Expertise struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	TutorID   string `gorm:"type:uuid;not null;index" json:"tutor_id"`
	Expertise string `gorm:"not null" json:"expertise"`
}

type Affiliation struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	TutorID     string `gorm:"type:uuid;not null;index" json:"tutor_id"`
	Affiliation string `gorm:"not null" json:"affiliation"`
}

type Social struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	TutorID string `gorm:"type:uuid;not null;index" json:"tutor_id"`
	Social  string `gorm:"not null" json:"social"`
}

type Availability struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	TutorID  string `gorm:"type:uuid;not null;index" json:"tutor_id"`
	Date     string `gorm:"column:availability;type:date;not null" json:"date"`
	TimeFrom string `gorm:"column:available_time_from;type:time;not null" json:"time_from"`
	TimeTo   string `gorm:"column:available_time_to;type:time;not null" json:"time_to"`
}

func (Subject) TableName() string      { return "catalog.subjects" }
func (Topic) TableName() string        { return "catalog.topics" }
func (Expertise) TableName() string    { return "catalog.expertise" }
func (Affiliation) TableName() string  { return "catalog.affiliations" }
func (Social) TableName() string       { return "catalog.socials" }
func (Availability) TableName() string { return "catalog.availability" }
