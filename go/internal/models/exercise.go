package models

// InjectType defines how an inject is delivered to participants.
type InjectType string

const (
	InjectTypeInPerson   InjectType = "IN_PERSON"
	InjectTypeRadioPhone InjectType = "RADIO_PHONE"
	InjectTypeElectronic InjectType = "ELECTRONIC"
	InjectTypeMap        InjectType = "MAP"
	InjectTypeOther      InjectType = "OTHER"
)

// InjectStatus defines the lifecycle status of an inject.
type InjectStatus string

const (
	InjectStatusPending   InjectStatus = "PENDING"
	InjectStatusCompleted InjectStatus = "COMPLETED"
	InjectStatusMissed    InjectStatus = "MISSED"
	InjectStatusSkipped   InjectStatus = "SKIPPED"
)

// ResourceStatus defines the lifecycle status of a requested resource.
type ResourceStatus string

const (
	ResourceStatusRequested ResourceStatus = "REQUESTED"
	ResourceStatusTasked    ResourceStatus = "TASKED"
	ResourceStatusEnroute   ResourceStatus = "ENROUTE"
	ResourceStatusArrived   ResourceStatus = "ARRIVED"
	ResourceStatusCancelled ResourceStatus = "CANCELLED"
)

// ResourceKind is an optional classification of a resource.
type ResourceKind string

const (
	ResourceKindPerson     ResourceKind = "PERSON"
	ResourceKindVehicle    ResourceKind = "VEHICLE"
	ResourceKindGroup      ResourceKind = "GROUP"
	ResourceKindAir        ResourceKind = "AIR"
	ResourceKindCapability ResourceKind = "CAPABILITY"
	ResourceKindSupply     ResourceKind = "SUPPLY"
)

// Inject is a scripted event delivered at a scheduled elapsed time.
// Number is derived from the rank of DueSeconds and is never set directly by callers.
type Inject struct {
	ID            string       `json:"id"`
	Number        int          `json:"number"`
	Title         string       `json:"title"`
	DueSeconds    int          `json:"due_seconds"`
	Type          InjectType   `json:"type"`
	Status        InjectStatus `json:"status"`
	To            string       `json:"to"`
	From          string       `json:"from"`
	AudioDataURL  string       `json:"audio_data_url,omitempty"`
	AudioName     string       `json:"audio_name,omitempty"`
	AutoPlayAudio bool         `json:"auto_play_audio,omitempty"`
}

// Resource is a logistics asset tracked from request through arrival.
type Resource struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	ETASeconds int            `json:"eta_seconds"`
	Status     ResourceStatus `json:"status"`
	Kind       ResourceKind   `json:"kind,omitempty"`
}

// DashboardSnapshot is the full serializable exercise state and the unit of synchronization.
type DashboardSnapshot struct {
	ExerciseName       string     `json:"exercise_name"`
	ControllerName     string     `json:"controller_name"`
	ExerciseFinishTime string     `json:"exercise_finish_time"`
	CurrentSeconds     int        `json:"current_seconds"`
	IsRunning          bool       `json:"is_running"`
	Injects            []Inject   `json:"injects"`
	Resources          []Resource `json:"resources"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (s DashboardSnapshot) Clone() DashboardSnapshot {
	out := s
	out.Injects = append([]Inject{}, s.Injects...)
	out.Resources = append([]Resource{}, s.Resources...)
	return out
}
