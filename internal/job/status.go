// Package job defines the core entities of the admission and scheduling
// core: Job, TaskMessage, ResourceEstimate, PrioritizedTask, LiveStatus,
// WorkerCapacity and UserUsage.
package job

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/JeffreyRichter/enum/enum"
)

// EStatus is the enum accessor for Status, following the
// var EFoo = Foo(0) idiom used throughout this codebase for every enum type.
var EStatus = Status(0)

// Status is the lifecycle state of a Job. The zero value is PENDING.
//
// Transitions form the DAG PENDING -> RUNNING -> {SUCCEEDED, FAILED}.
// RUNNING -> PENDING and leaving a terminal state are both forbidden;
// callers that need to enforce this should use CanTransitionTo.
type Status uint32 // 32-bit so job status fields can be mutated atomically

func (Status) Pending() Status   { return Status(0) }
func (Status) Running() Status   { return Status(1) }
func (Status) Succeeded() Status { return Status(2) }
func (Status) Failed() Status    { return Status(3) }

func (s Status) String() string {
	return enum.StringInt(s, reflect.TypeOf(s))
}

// Wire renders s in the upper-case form every REST response field and
// JSON representation of Status uses (PENDING/RUNNING/SUCCEEDED/FAILED);
// String stays mixed-case for the enum package's own Parse/reflect idiom.
func (s Status) Wire() string {
	return strings.ToUpper(s.String())
}

func (s *Status) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(s), str, true, true)
	if err == nil {
		*s = val.(Status)
	}
	return err
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Wire())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	return s.Parse(str)
}

// IsTerminal reports whether s is SUCCEEDED or FAILED.
func (s Status) IsTerminal() bool {
	return s == EStatus.Succeeded() || s == EStatus.Failed()
}

// CanTransitionTo enforces the DAG PENDING -> RUNNING -> {SUCCEEDED, FAILED}.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case EStatus.Pending():
		return next == EStatus.Running()
	case EStatus.Running():
		return next == EStatus.Succeeded() || next == EStatus.Failed()
	default:
		return false // terminal states never transition
	}
}

// AtomicStatus wraps a Status for lock-free reads and writes of an
// in-memory status mirror.
type AtomicStatus struct {
	v uint32
}

func NewAtomicStatus(s Status) *AtomicStatus {
	a := &AtomicStatus{}
	a.Store(s)
	return a
}

func (a *AtomicStatus) Load() Status {
	return Status(atomic.LoadUint32(&a.v))
}

func (a *AtomicStatus) Store(s Status) {
	atomic.StoreUint32(&a.v, uint32(s))
}
