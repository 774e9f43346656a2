package pipeline

import (
	"container/heap"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/internal/models"
)

// TaskResult is what one student's task produced. Priority counts the
// interviews that carry both a company and a datetime.
type TaskResult struct {
	Priority   int
	StudentID  string
	Interviews []models.ExtractedInterview
}

// NewTaskResult computes Priority from interviews.
func NewTaskResult(studentID string, interviews []models.ExtractedInterview) TaskResult {
	priority := 0
	for _, interview := range interviews {
		if interview.Complete() {
			priority++
		}
	}
	return TaskResult{Priority: priority, StudentID: studentID, Interviews: interviews}
}

// resultQueue is a max-heap on Priority. Equal priorities pop in no particular order.
type resultQueue []TaskResult

func (q resultQueue) Len() int           { return len(q) }
func (q resultQueue) Less(i, j int) bool { return q[i].Priority > q[j].Priority }
func (q resultQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *resultQueue) Push(x any) { *q = append(*q, x.(TaskResult)) }

func (q *resultQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Aggregate drains results by descending priority into a delivery payload.
// Only complete interviews are kept and students left with none are omitted.
func Aggregate(results []TaskResult) dto.DeliveryPayload {
	q := make(resultQueue, 0, len(results))
	for _, r := range results {
		q = append(q, r)
	}
	heap.Init(&q)

	payload := make(dto.DeliveryPayload)
	for q.Len() > 0 {
		task := heap.Pop(&q).(TaskResult)
		var entries []dto.InterviewEntry
		for _, interview := range task.Interviews {
			if !interview.Complete() {
				continue
			}
			entries = append(entries, dto.InterviewEntry{
				CompanyName:       *interview.CompanyName,
				InterviewDatetime: *interview.InterviewDatetime,
			})
		}
		if len(entries) > 0 {
			payload[task.StudentID] = append(payload[task.StudentID], entries...)
		}
	}
	return payload
}
