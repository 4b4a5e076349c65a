package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/rafidiit-ops/ReverseGoGo/internal/config"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
)

func thresholdDistance(_ context.Context, cfg *config.Config) (float64, error) {
	return math.Abs(cfg.Depth.Threshold-0.35) + cfg.Depth.Power, nil
}

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewWithT(t)
	gs, err := NewGridSearch(
		[]string{"depth.threshold", "depth.power"},
		[][]float64{{0.25, 0.35, 0.45}, {1, 2}},
	)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(gs.Size()).To(Equal(6))

	best, trials, err := gs.Search(context.Background(), config.DefaultConfig(), thresholdDistance)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(trials).To(HaveLen(6))
	g.Expect(best.Params).To(Equal(map[string]float64{"depth.threshold": 0.35, "depth.power": 1}))
	g.Expect(best.Value).To(BeNumerically("~", 1, 1e-12))
}

func TestGridSearchLeavesBaseAlone(t *testing.T) {
	g := NewWithT(t)
	base := config.DefaultConfig()
	gs, err := NewGridSearch([]string{"gogo.scaling_factor"}, [][]float64{{5, 50}})
	g.Expect(err).NotTo(HaveOccurred())

	_, _, err = gs.Search(context.Background(), base, func(_ context.Context, c *config.Config) (float64, error) {
		return c.GoGo.ScalingFactor, nil
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(base.GoGo.ScalingFactor).To(Equal(20.0))
}

func TestGridSearchRecordsInvalidPoints(t *testing.T) {
	g := NewWithT(t)
	gs, err := NewGridSearch([]string{"depth.threshold"}, [][]float64{{-1, 0.3}})
	g.Expect(err).NotTo(HaveOccurred())

	best, trials, err := gs.Search(context.Background(), config.DefaultConfig(), thresholdDistance)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(trials[0].Err).To(HaveOccurred())
	g.Expect(math.IsNaN(trials[0].Value)).To(BeTrue())
	g.Expect(best.Params["depth.threshold"]).To(Equal(0.3))
}

func TestGridSearchErrors(t *testing.T) {
	g := NewWithT(t)
	_, err := NewGridSearch([]string{"depth.colour"}, [][]float64{{1}})
	g.Expect(errors.Is(err, ErrUnknownParam)).To(BeTrue())

	_, err = NewGridSearch([]string{"depth.power"}, nil)
	g.Expect(err).To(HaveOccurred())

	_, err = NewGridSearch([]string{"depth.power"}, [][]float64{{}})
	g.Expect(err).To(HaveOccurred())

	gs, _ := NewGridSearch([]string{"depth.power"}, [][]float64{{1, 2}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, trials, err := gs.Search(ctx, config.DefaultConfig(), thresholdDistance)
	g.Expect(err).To(MatchError(context.Canceled))
	g.Expect(trials).To(BeEmpty())
}

func TestParamNamesSorted(t *testing.T) {
	g := NewWithT(t)
	names := ParamNames()
	g.Expect(names).To(HaveLen(len(Params)))
	g.Expect(names[0]).To(Equal("depth.max_multiplier"))
}

func TestStudyObjective(t *testing.T) {
	g := NewWithT(t)
	log.Discard()

	_, err := StudyObjective("happiness")
	g.Expect(err).To(HaveOccurred())

	failure, err := StudyObjective(Failure)
	g.Expect(err).NotTo(HaveOccurred())
	v, err := failure(context.Background(), config.DefaultConfig())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(BeNumerically("~", 0, 1e-9))

	taskTime, err := StudyObjective(TaskTime)
	g.Expect(err).NotTo(HaveOccurred())
	v, err = taskTime(context.Background(), config.DefaultConfig())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(BeNumerically(">", 0))

	travel, err := StudyObjective("hand_travel")
	g.Expect(err).NotTo(HaveOccurred())
	v, err = travel(context.Background(), config.DefaultConfig())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(BeNumerically(">", 0))
}
