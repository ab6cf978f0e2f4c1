package model

import "fmt"

type WUState int

const (
	WUFree WUState = iota
	WUConstructed
	WUDeferred
	WUInProgress
	WUOK
	WUFailed
	WUPartiallyFailed
)

var wuStateNames = [...]string{
	WUFree:            "free",
	WUConstructed:     "constructed",
	WUDeferred:        "deferred",
	WUInProgress:      "inprogress",
	WUOK:              "ok",
	WUFailed:          "failed",
	WUPartiallyFailed: "partially-failed",
}

func (s WUState) String() string {
	if int(s) >= 0 && int(s) < len(wuStateNames) {
		return wuStateNames[s]
	}

	return fmt.Sprintf("WUState(%d)", int(s))
}

// Terminal reports whether the work unit has reached a final outcome.
func (s WUState) Terminal() bool {
	return s == WUOK || s == WUFailed || s == WUPartiallyFailed
}

type CCBState int

const (
	CCBFree CCBState = iota
	CCBInProgress
	CCBOK
	CCBFailed
)

func (s CCBState) String() string {
	switch s {
	case CCBFree:
		return "free"
	case CCBInProgress:
		return "inprogress"
	case CCBOK:
		return "ok"
	case CCBFailed:
		return "failed"
	default:
		return fmt.Sprintf("CCBState(%d)", int(s))
	}
}

func (s CCBState) Terminal() bool {
	return s == CCBOK || s == CCBFailed
}
