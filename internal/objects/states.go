package objects

// ServiceState is the raw state carried by every check result. Hosts store
// the same raw values and derive Up/Down from them.
type ServiceState int

const (
	StateOK ServiceState = iota
	StateWarning
	StateCritical
	StateUnknown
)

// HostState is derived from the raw state: OK and Warning map to Up,
// everything else to Down.
type HostState int

const (
	HostUp HostState = iota
	HostDown
)

// StateType distinguishes tentative (soft) from stable (hard) states.
type StateType int

const (
	StateTypeSoft StateType = iota
	StateTypeHard
)

// AckType is the acknowledgement mode set on a checkable.
type AckType int

const (
	AckNone AckType = iota
	AckNormal
	AckSticky
)

// NotificationType identifies a notification request. The values are bit
// flags so a set of suppressed notifications fits in one field.
type NotificationType uint32

const (
	NotificationDowntimeStart NotificationType = 1 << iota
	NotificationDowntimeEnd
	NotificationDowntimeRemoved
	NotificationCustom
	NotificationAcknowledgement
	NotificationProblem
	NotificationRecovery
	NotificationFlappingStart
	NotificationFlappingEnd
)

// HostStateFromRaw derives the host state from a raw check state.
func HostStateFromRaw(s ServiceState) HostState {
	if s == StateOK || s == StateWarning {
		return HostUp
	}
	return HostDown
}

// StateFromExitCode maps a plugin exit code to a service state.
// 0=OK, 1=Warning, 2=Critical, everything else Unknown.
func StateFromExitCode(code int) ServiceState {
	switch code {
	case 0:
		return StateOK
	case 1:
		return StateWarning
	case 2:
		return StateCritical
	default:
		return StateUnknown
	}
}

// ServiceStateName returns the display name for a raw state.
func ServiceStateName(s ServiceState) string {
	switch s {
	case StateOK:
		return "OK"
	case StateWarning:
		return "WARNING"
	case StateCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// HostStateName returns the display name for a host state.
func HostStateName(s HostState) string {
	if s == HostUp {
		return "UP"
	}
	return "DOWN"
}

// StateTypeName returns "HARD" or "SOFT".
func StateTypeName(st StateType) string {
	if st == StateTypeHard {
		return "HARD"
	}
	return "SOFT"
}

// NotificationTypeName returns the display name for a notification type.
func NotificationTypeName(nt NotificationType) string {
	switch nt {
	case NotificationDowntimeStart:
		return "DOWNTIMESTART"
	case NotificationDowntimeEnd:
		return "DOWNTIMEEND"
	case NotificationDowntimeRemoved:
		return "DOWNTIMECANCELLED"
	case NotificationCustom:
		return "CUSTOM"
	case NotificationAcknowledgement:
		return "ACKNOWLEDGEMENT"
	case NotificationProblem:
		return "PROBLEM"
	case NotificationRecovery:
		return "RECOVERY"
	case NotificationFlappingStart:
		return "FLAPPINGSTART"
	case NotificationFlappingEnd:
		return "FLAPPINGEND"
	default:
		return "UNKNOWN_NOTIFICATION"
	}
}
