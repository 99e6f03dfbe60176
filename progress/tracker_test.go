package progress

import (
	"bytes"
	"io"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

var _ = Describe("Tracker", func() {
	var (
		rec     *recorder
		tracker *Tracker
	)

	BeforeEach(func() {
		rec = &recorder{}
		tracker = NewTracker(rec)
	})

	It("publishes only forward movement", func() {
		tracker.Set(10)
		tracker.Set(10)
		tracker.Set(5)
		tracker.Set(20)

		Expect(rec.Events()).To(Equal([]Event{{Progress: 10}, {Progress: 20}}))
		Expect(tracker.Last()).To(Equal(20))
	})

	It("keeps 100 for the terminal event", func() {
		tracker.Set(150)
		tracker.Complete()

		Expect(rec.Events()).To(Equal([]Event{{Progress: 99}, Finished()}))
	})

	It("maps a phase onto its range", func() {
		tracker.Phase(50, 100, 0, 4)
		tracker.Phase(50, 100, 2, 4)
		tracker.Phase(50, 100, 4, 4)

		Expect(rec.Events()).To(Equal([]Event{{Progress: 50}, {Progress: 75}, {Progress: 99}}))
	})

	It("reports failures at the last progress", func() {
		tracker.Set(30)
		tracker.Fail("embedding_error")

		events := rec.Events()
		Expect(events[len(events)-1]).To(Equal(Event{Progress: 30, Complete: true, Error: "embedding_error"}))
	})

	Describe("Reader", func() {
		It("reports bytes read as progress in the phase", func() {
			data := bytes.Repeat([]byte("x"), 1000)
			r := tracker.Reader(bytes.NewReader(data), int64(len(data)), 0, 50)

			buf := make([]byte, 250)
			for {
				_, err := r.Read(buf)
				if err == io.EOF {
					break
				}
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(rec.Events()).To(Equal([]Event{
				{Progress: 12}, {Progress: 25}, {Progress: 37}, {Progress: 50},
			}))
		})

		It("stays silent when the size is unknown", func() {
			r := tracker.Reader(bytes.NewReader([]byte("abc")), -1, 0, 50)
			_, err := io.ReadAll(r)

			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Events()).To(BeEmpty())
		})
	})
})
