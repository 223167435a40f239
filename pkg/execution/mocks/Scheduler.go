// Code generated by mockery v1.0.0
package mocks

import execution "github.com/helinwang/prodcon/pkg/execution"
import ledger "github.com/helinwang/prodcon/pkg/ledger"
import mock "github.com/stretchr/testify/mock"

// Scheduler is an autogenerated mock type for the Scheduler type
type Scheduler struct {
	mock.Mock
}

// AddBatch provides a mock function with given fields: b
func (_m *Scheduler) AddBatch(b *ledger.BatchPair) error {
	ret := _m.Called(b)

	var r0 error
	if rf, ok := ret.Get(0).(func(*ledger.BatchPair) error); ok {
		r0 = rf(b)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Cancel provides a mock function with given fields:
func (_m *Scheduler) Cancel() {
	_m.Called()
}

// Finalize provides a mock function with given fields:
func (_m *Scheduler) Finalize() error {
	ret := _m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewNotifier provides a mock function with given fields:
func (_m *Scheduler) NewNotifier() (execution.Notifier, error) {
	ret := _m.Called()

	var r0 execution.Notifier
	if rf, ok := ret.Get(0).(func() execution.Notifier); ok {
		r0 = rf()
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(execution.Notifier)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func() error); ok {
		r1 = rf()
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SetResultCallback provides a mock function with given fields: f
func (_m *Scheduler) SetResultCallback(f func(*ledger.BatchExecutionResult)) error {
	ret := _m.Called(f)

	var r0 error
	if rf, ok := ret.Get(0).(func(func(*ledger.BatchExecutionResult)) error); ok {
		r0 = rf(f)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// TakeTaskIterator provides a mock function with given fields:
func (_m *Scheduler) TakeTaskIterator() (<-chan *execution.Task, error) {
	ret := _m.Called()

	var r0 <-chan *execution.Task
	if rf, ok := ret.Get(0).(func() <-chan *execution.Task); ok {
		r0 = rf()
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(<-chan *execution.Task)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func() error); ok {
		r1 = rf()
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
