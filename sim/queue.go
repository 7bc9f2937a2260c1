// Implements the CustomerQueue, the unbounded FIFO buffer in front of each stage.
// Customers are enqueued at the back; a preempted stage-2 customer returns to the front.

package sim

import (
	"fmt"
	"strings"

	"github.com/gammazero/deque"
)

// CustomerQueue is a FIFO sequence of customers waiting for the server.
// The zero value is an empty queue ready to use.
type CustomerQueue struct {
	items deque.Deque[*Customer]
}

// Enqueue adds a customer to the back of the queue.
func (q *CustomerQueue) Enqueue(c *Customer) {
	if c == nil {
		panic("Enqueue: customer must not be nil")
	}
	q.items.PushBack(c)
}

// PrependFront inserts a customer at the front of the queue.
// Used for preemption: the stage-2 customer losing the server is placed
// back at the head of queue2 so it is the next stage-2 customer served.
func (q *CustomerQueue) PrependFront(c *Customer) {
	if c == nil {
		panic("PrependFront: customer must not be nil")
	}
	q.items.PushFront(c)
}

// Dequeue removes and returns the customer at the front of the queue.
// Returns nil if the queue is empty.
func (q *CustomerQueue) Dequeue() *Customer {
	if q.items.Len() == 0 {
		return nil
	}
	return q.items.PopFront()
}

// Peek returns the customer at the front without removing it.
// Returns nil if the queue is empty.
func (q *CustomerQueue) Peek() *Customer {
	if q.items.Len() == 0 {
		return nil
	}
	return q.items.Front()
}

// Len returns the number of customers in the queue.
func (q *CustomerQueue) Len() int {
	return q.items.Len()
}

// Each calls fn for every customer from front to back.
func (q *CustomerQueue) Each(fn func(*Customer)) {
	for i := 0; i < q.items.Len(); i++ {
		fn(q.items.At(i))
	}
}

func (q *CustomerQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < q.items.Len(); i++ {
		sb.WriteString(fmt.Sprint(q.items.At(i)))
		if i < q.items.Len()-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
