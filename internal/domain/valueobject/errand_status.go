package valueobject

import "github.com/ignatzorin/errands-backend/internal/pkg/apperror"

type ErrandStatus string

const (
	ErrandStatusOpen       ErrandStatus = "open"
	ErrandStatusAccepted   ErrandStatus = "accepted"
	ErrandStatusInProgress ErrandStatus = "in_progress"
	ErrandStatusCompleted  ErrandStatus = "completed"
	ErrandStatusCancelled  ErrandStatus = "cancelled"
)

// errandTransitions: полный набор допустимых переходов задания.
var errandTransitions = map[ErrandStatus][]ErrandStatus{
	ErrandStatusOpen:       {ErrandStatusAccepted, ErrandStatusCancelled},
	ErrandStatusAccepted:   {ErrandStatusInProgress, ErrandStatusCancelled},
	ErrandStatusInProgress: {ErrandStatusCompleted, ErrandStatusCancelled},
	ErrandStatusCompleted:  {},
	ErrandStatusCancelled:  {},
}

func (s ErrandStatus) IsValid() bool {
	_, ok := errandTransitions[s]
	return ok
}

func (s ErrandStatus) IsTerminal() bool {
	return s == ErrandStatusCompleted || s == ErrandStatusCancelled
}

// HasRunner сообщает, должен ли в этом статусе быть назначен исполнитель.
func (s ErrandStatus) HasRunner() bool {
	switch s {
	case ErrandStatusAccepted, ErrandStatusInProgress, ErrandStatusCompleted:
		return true
	}
	return false
}

func (s ErrandStatus) CanTransitionTo(newStatus ErrandStatus) bool {
	for _, status := range errandTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// CancellableFrom возвращает статусы, из которых задание можно отменить.
func CancellableFrom() []ErrandStatus {
	var out []ErrandStatus
	for _, s := range []ErrandStatus{ErrandStatusOpen, ErrandStatusAccepted, ErrandStatusInProgress} {
		if s.CanTransitionTo(ErrandStatusCancelled) {
			out = append(out, s)
		}
	}
	return out
}

func NewErrandStatus(status string) (ErrandStatus, error) {
	s := ErrandStatus(status)
	if !s.IsValid() {
		return "", apperror.BadRequest("некорректный статус задания")
	}
	return s, nil
}

type ErrandCategory string

const (
	CategoryDelivery ErrandCategory = "delivery"
	CategoryBuyForMe ErrandCategory = "buy_for_me"
	CategoryQueue    ErrandCategory = "queue"
	CategoryRepair   ErrandCategory = "repair"
	CategoryCustom   ErrandCategory = "custom"
)

func (c ErrandCategory) IsValid() bool {
	switch c {
	case CategoryDelivery, CategoryBuyForMe, CategoryQueue, CategoryRepair, CategoryCustom:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

type LocationType string

const (
	LocationPickup  LocationType = "pickup"
	LocationDropoff LocationType = "dropoff"
)

func (t LocationType) IsValid() bool {
	return t == LocationPickup || t == LocationDropoff
}

type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

func (t MediaType) IsValid() bool {
	switch t {
	case MediaImage, MediaVideo, MediaDocument:
		return true
	}
	return false
}

// UserRole: роль пользователя на площадке.
type UserRole string

const (
	RoleRequester UserRole = "requester"
	RoleRunner    UserRole = "runner"
	RoleBoth      UserRole = "both"
)

// CanRun сообщает, может ли пользователь с этой ролью принимать задания.
func (r UserRole) CanRun() bool {
	return r != RoleRequester
}
