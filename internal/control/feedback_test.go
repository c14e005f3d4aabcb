package control

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidsim/internal/dynamo"
)

var _ = Describe("Feedback", func() {
	It("should feed the selected state component to the PID", func() {
		fb := NewFeedback(NewPID(2, 0, 0, 1), 1)
		Expect(fb.Compute(dynamo.State{100, 0}, 0)).To(Equal(dynamo.Control{0}))
		Expect(fb.Compute(dynamo.State{100, 0.5}, 1)).To(Equal(dynamo.Control{1}))
	})

	It("should output zero for an out-of-range index", func() {
		fb := NewFeedback(NewPID(2, 0, 0, 1), 3)
		Expect(fb.Compute(dynamo.State{1}, 0)).To(Equal(dynamo.Control{0}))
		Expect(fb.PID.started).To(BeFalse())
	})
})

var _ = Describe("Open-loop controllers", func() {
	It("should hold a manual output", func() {
		m := NewManual(3, 7)
		Expect(m.Setpoint()).To(Equal(7.0))
		Expect(m.Compute(dynamo.State{1}, 0)).To(Equal(dynamo.Control{3}))
		Expect(m.SetParam("output", 4)).To(Succeed())
		Expect(m.Compute(dynamo.State{1}, 1)).To(Equal(dynamo.Control{4}))
		Expect(m.SetParam("kp", 1)).To(MatchError(ErrUnknownParam))
	})

	It("should output zeros of the requested dimension", func() {
		Expect(NewNone(2).Compute(dynamo.State{1}, 0)).To(Equal(dynamo.Control{0, 0}))
	})
})

var _ = Describe("Scheduled", func() {
	It("should apply setpoint changes as they fall due", func() {
		fb := NewFeedback(NewPID(1, 0, 0, 10), 0)
		s, err := NewScheduled(fb, []Change{{At: 2, Setpoint: 20}, {At: 1, Setpoint: 15}})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Compute(dynamo.State{0}, 0)).To(Equal(dynamo.Control{0}))
		Expect(s.Setpoint()).To(Equal(10.0))

		Expect(s.Compute(dynamo.State{0}, 1)).To(Equal(dynamo.Control{15}))
		Expect(s.Compute(dynamo.State{0}, 2)).To(Equal(dynamo.Control{20}))
		Expect(s.Compute(dynamo.State{0}, 3)).To(Equal(dynamo.Control{20}))
		Expect(fb.Setpoint()).To(Equal(20.0))
	})

	It("should rewind on reset", func() {
		fb := NewFeedback(NewPID(1, 0, 0, 10), 0)
		s, err := NewScheduled(fb, []Change{{At: 1, Setpoint: 15}})
		Expect(err).NotTo(HaveOccurred())

		s.Compute(dynamo.State{0}, 0)
		s.Compute(dynamo.State{0}, 1)
		Expect(s.Setpoint()).To(Equal(15.0))

		s.Reset()
		Expect(s.Setpoint()).To(Equal(10.0))
		Expect(fb.PID.started).To(BeFalse())
	})

	It("should pass tuning through to the wrapped controller", func() {
		fb := NewFeedback(NewPID(1, 0, 0, 10), 0)
		s, err := NewScheduled(fb, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.SetParam("kp", 3)).To(Succeed())
		Expect(fb.PID.Kp).To(Equal(3.0))
		Expect(s.GetParams()).To(HaveKeyWithValue("kp", 3.0))
	})

	It("should reject controllers without a setpoint", func() {
		_, err := NewScheduled(NewNone(1), []Change{{At: 1, Setpoint: 2}})
		Expect(err).To(MatchError(ErrNotSchedulable))
	})

	It("should move a manual controller's reference line", func() {
		m := NewManual(5, 0)
		s, err := NewScheduled(m, []Change{{At: 0, Setpoint: 30}})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Compute(dynamo.State{0}, 0)).To(Equal(dynamo.Control{5}))
		Expect(s.Setpoint()).To(Equal(30.0))
	})
})
