// Code generated by mockery v1.0.0
package mocks

import execution "github.com/helinwang/prodcon/pkg/execution"
import mock "github.com/stretchr/testify/mock"

// TaskExecutor is an autogenerated mock type for the TaskExecutor type
type TaskExecutor struct {
	mock.Mock
}

// Execute provides a mock function with given fields: tasks, n
func (_m *TaskExecutor) Execute(tasks <-chan *execution.Task, n execution.Notifier) error {
	ret := _m.Called(tasks, n)

	var r0 error
	if rf, ok := ret.Get(0).(func(<-chan *execution.Task, execution.Notifier) error); ok {
		r0 = rf(tasks, n)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}
