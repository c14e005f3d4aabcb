package control

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PID", func() {
	var pid *PID

	Context("on the first sample", func() {
		It("should return exactly zero regardless of gains", func() {
			for _, g := range [][4]float64{
				{2, 0.1, 0.5, 50},
				{-3, -1, 7, -20},
				{0, 0, 0, 0},
			} {
				pid = NewPID(g[0], g[1], g[2], g[3])
				Expect(pid.Compute(123.4, 17)).To(Equal(0.0))
				Expect(pid.started).To(BeTrue())
				Expect(pid.lastTime).To(Equal(17.0))
				Expect(pid.integral).To(Equal(0.0))
				Expect(pid.lastErr).To(Equal(0.0))
			}
		})
	})

	Context("when the timestamp does not advance", func() {
		BeforeEach(func() {
			pid = NewPID(1, 1, 1, 10)
			pid.Compute(0, 0)
			pid.Compute(2, 1)
		})

		It("should return zero and leave the state untouched", func() {
			integral, lastErr, lastTime := pid.integral, pid.lastErr, pid.lastTime

			Expect(pid.Compute(2, 1)).To(Equal(0.0))
			Expect(pid.Compute(5, 0.5)).To(Equal(0.0))

			Expect(pid.integral).To(Equal(integral))
			Expect(pid.lastErr).To(Equal(lastErr))
			Expect(pid.lastTime).To(Equal(lastTime))
		})
	})

	Context("as a pure proportional controller", func() {
		It("should output kp times the error", func() {
			pid = NewPID(3, 0, 0, 10)
			pid.Compute(4, 0)
			Expect(pid.Compute(7, 1)).To(Equal(9.0))
			Expect(pid.Compute(12, 1.25)).To(Equal(-6.0))
		})

		It("should clamp to the output limits", func() {
			var err error
			pid, err = NewPIDWithLimits(3, 0, 0, 10, 0, 5)
			Expect(err).ToNot(HaveOccurred())
			pid.Compute(4, 0)
			Expect(pid.Compute(7, 1)).To(Equal(5.0))
			Expect(pid.Compute(12, 2)).To(Equal(0.0))
		})
	})

	Context("with integral action only", func() {
		It("should not decrease under a constant positive error", func() {
			pid = NewPID(0, 0.5, 0, 10)
			pid.Compute(0, 0)

			prev := math.Inf(-1)
			for i := 1; i <= 50; i++ {
				out := pid.Compute(0, float64(i)*0.3)
				Expect(out).To(BeNumerically(">=", prev))
				prev = out
			}
			Expect(prev).To(BeNumerically("~", 0.5*10*0.3*50, 1e-9))
		})

		It("should pin the accumulator to zero when ki is zero", func() {
			pid = NewPID(1, 0, 0, 10)
			pid.Compute(0, 0)
			for i := 1; i <= 10; i++ {
				pid.Compute(0, float64(i))
				Expect(pid.integral).To(Equal(0.0))
			}
		})
	})

	Context("with derivative action only", func() {
		It("should follow the first difference of the error", func() {
			pid = NewPID(0, 0, 1, 5)
			pid.Compute(0, 0)
			Expect(pid.Compute(0, 1)).To(Equal(5.0))
			Expect(pid.Compute(2, 2)).To(Equal(-2.0))
			Expect(pid.Compute(2, 4)).To(Equal(0.0))
		})
	})

	Context("under a large sustained error", func() {
		BeforeEach(func() {
			var err error
			pid, err = NewPIDWithLimits(0, 1, 0, 100, -1, 1)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should keep the output and the accumulator inside the limits", func() {
			pid.Compute(0, 0)
			for i := 1; i <= 1000; i++ {
				out := pid.Compute(0, float64(i))
				Expect(out).To(BeNumerically(">=", -1))
				Expect(out).To(BeNumerically("<=", 1))
				Expect(pid.integral).To(BeNumerically("<=", 1))
			}
		})

		It("should unwind immediately when the error reverses", func() {
			pid.Compute(0, 0)
			for i := 1; i <= 1000; i++ {
				pid.Compute(0, float64(i))
			}
			Expect(pid.Compute(200, 1001)).To(Equal(-1.0))
		})
	})

	Context("with extreme gains", func() {
		It("should always stay within finite limits", func() {
			var err error
			pid, err = NewPIDWithLimits(1e9, 1e9, 1e9, 0, -3, 7)
			Expect(err).ToNot(HaveOccurred())
			pid.Compute(0, 0)
			for i := 1; i <= 100; i++ {
				pv := 1e6 * math.Sin(float64(i))
				out := pid.Compute(pv, float64(i)*1e-3)
				Expect(out).To(BeNumerically(">=", -3))
				Expect(out).To(BeNumerically("<=", 7))
			}
		})
	})

	Context("with a negative integral gain", func() {
		It("should pin the accumulator to outMin/ki", func() {
			var err error
			pid, err = NewPIDWithLimits(0, -1, 0, 0, -10, 10)
			Expect(err).ToNot(HaveOccurred())
			pid.Compute(0, 0)

			Expect(pid.Compute(3, 1)).To(Equal(10.0))
			Expect(pid.integral).To(Equal(10.0))
			Expect(pid.Compute(-3, 2)).To(Equal(10.0))
			Expect(pid.integral).To(Equal(10.0))
		})

		It("should saturate at +Inf without output limits", func() {
			pid = NewPID(1, -0.1, 0, 0)
			Expect(pid.Compute(0, 0)).To(Equal(0.0))

			out := pid.Compute(3, 1)
			Expect(math.IsInf(out, 1)).To(BeTrue())
			Expect(math.IsInf(pid.integral, 1)).To(BeTrue())

			out = pid.Compute(-3, 2)
			Expect(math.IsInf(out, 1)).To(BeTrue())
		})
	})

	Context("when the setpoint changes", func() {
		It("should use the new setpoint from the next call on", func() {
			pid = NewPID(1, 0, 0, 10)
			pid.Compute(0, 0)
			Expect(pid.Compute(0, 1)).To(Equal(10.0))

			pid.SetSetpoint(20)
			Expect(pid.lastErr).To(Equal(10.0))
			Expect(pid.Compute(0, 2)).To(Equal(20.0))
			Expect(pid.Setpoint()).To(Equal(20.0))
		})
	})

	Context("driving the heater scenario", func() {
		It("should converge toward the setpoint inside the limits", func() {
			var err error
			pid, err = NewPIDWithLimits(2.0, 0.1, 0.5, 50, 0, 100)
			Expect(err).ToNot(HaveOccurred())

			temp := 20.0
			outputs := make([]float64, 0, 60)
			temps := make([]float64, 0, 60)
			for i := 0; i < 60; i++ {
				out := pid.Compute(temp, float64(i)*0.5)
				temp += (0.1*out - 0.05*temp) * 0.5
				outputs = append(outputs, out)
				temps = append(temps, temp)
			}

			Expect(outputs[0]).To(Equal(0.0))
			Expect(outputs[1]).To(BeNumerically("~", 93.025, 1e-9))
			for _, out := range outputs {
				Expect(out).To(BeNumerically(">=", 0))
				Expect(out).To(BeNumerically("<=", 100))
			}
			Expect(temps[59]).To(BeNumerically(">", temps[29]))
			Expect(math.Abs(50 - temps[59])).To(BeNumerically("<", 2))
		})
	})

	Describe("output limits", func() {
		It("should reject min > max", func() {
			_, err := NewPIDWithLimits(1, 1, 1, 0, 5, 1)
			Expect(err).To(MatchError(ErrInvalidLimits))
		})

		It("should keep previous limits on error", func() {
			pid = NewPID(1, 0, 0, 0)
			Expect(pid.SetOutputLimits(-2, 2)).To(Succeed())
			Expect(pid.SetOutputLimits(math.NaN(), 2)).To(MatchError(ErrInvalidLimits))

			min, max := pid.OutputLimits()
			Expect(min).To(Equal(-2.0))
			Expect(max).To(Equal(2.0))
		})

		It("should default to unbounded", func() {
			pid = NewPID(1, 0, 0, 0)
			min, max := pid.OutputLimits()
			Expect(math.IsInf(min, -1)).To(BeTrue())
			Expect(math.IsInf(max, 1)).To(BeTrue())
		})
	})

	Describe("ComputeNow", func() {
		It("should read time from the clock", func() {
			mock := clock.NewMock()
			mock.Set(time.Unix(1000, 0))
			pid = NewPID(1, 0, 0, 10).WithClock(mock)

			Expect(pid.ComputeNow(4)).To(Equal(0.0))
			Expect(pid.ComputeNow(4)).To(Equal(0.0))

			mock.Add(500 * time.Millisecond)
			Expect(pid.ComputeNow(4)).To(Equal(6.0))
			Expect(pid.lastTime).To(BeNumerically("~", 1000.5, 1e-6))
		})
	})

	Describe("Reset", func() {
		It("should return to the awaiting-first-sample phase", func() {
			pid = NewPID(1, 1, 1, 10)
			pid.Compute(0, 0)
			pid.Compute(0, 1)

			pid.Reset()
			Expect(pid.integral).To(Equal(0.0))
			Expect(pid.lastErr).To(Equal(0.0))
			Expect(pid.Compute(0, 5)).To(Equal(0.0))
			Expect(pid.Kp).To(Equal(1.0))
		})
	})

	Describe("live tuning", func() {
		It("should set known params", func() {
			pid = NewPID(1, 2, 3, 4)
			Expect(pid.SetParam("kd", 9)).To(Succeed())
			Expect(pid.SetParam("setpoint", 8)).To(Succeed())
			Expect(pid.GetParams()).To(Equal(map[string]float64{
				"kp": 1, "ki": 2, "kd": 9, "setpoint": 8,
			}))
		})

		It("should reject unknown params", func() {
			pid = NewPID(1, 2, 3, 4)
			Expect(pid.SetParam("gain", 1)).To(MatchError(ErrUnknownParam))
		})
	})
})
