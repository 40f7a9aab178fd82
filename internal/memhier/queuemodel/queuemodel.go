// Package queuemodel implements the single-server contention model (spec
// §4.4.4/§4.4.5's QueueModelSimple) shared by the directory controller, the
// DRAM controller, and the L2 pending-directory-request replay path.
package queuemodel

import "github.com/sarchlab/meshsim/internal/common"

// Simple models one server that processes one request per unit of
// processing_time, queueing arrivals that overlap with an earlier request
// still in service. Ported directly from
// original_source/common/performance_model/queue_models/queue_model_simple.cc.
type Simple struct {
	queueTime     common.Time
	lastEventTime common.Time
}

// NewSimple builds an empty (idle) queue model.
func NewSimple() *Simple {
	return &Simple{}
}

// ComputeQueueDelay returns how long a request arriving at eventTime, whose
// processing takes processingTime cycles, must wait behind requests already
// queued, and records its departure as the new tail of the queue.
func (q *Simple) ComputeQueueDelay(eventTime common.Time, processingTime common.Time) common.Time {
	q.lastEventTime = eventTime

	var delay common.Time
	if q.queueTime > eventTime {
		delay = q.queueTime - eventTime
	}

	tail := eventTime
	if q.queueTime > tail {
		tail = q.queueTime
	}
	q.queueTime = tail + processingTime

	return delay
}
