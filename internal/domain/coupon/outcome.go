// internal/domain/coupon/outcome.go
package coupon

// Kind is the machine-checkable reason a coupon was rejected. Business-rule
// failures travel as outcomes, never as Go errors.
type Kind string

const (
	KindOK                Kind = "ok"
	KindNotFound          Kind = "not_found"
	KindInactive          Kind = "inactive"
	KindNotYetActive      Kind = "not_yet_active"
	KindExpired           Kind = "expired"
	KindBelowMinOrder     Kind = "below_min_order"
	KindUsageLimitReached Kind = "usage_limit_reached"
	KindUserLimitReached  Kind = "user_limit_reached"
	KindFirstTimeOnly     Kind = "first_time_only"
	KindAlreadyClaimed    Kind = "already_claimed"
	KindStorageConflict   Kind = "storage_conflict"
)

type Outcome struct {
	Valid   bool   `json:"valid"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func OK() Outcome {
	return Outcome{Valid: true, Kind: KindOK, Message: "coupon is valid"}
}

func Rejected(kind Kind, message string) Outcome {
	return Outcome{Valid: false, Kind: kind, Message: message}
}
