package reinforcement

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
kind: training
def:
  algorithm:
    name: sarsa
  episodes: 250
  hyperParams:
    - key: epsilon
      val: 0.2
    - key: eta
      val: 0.5
  trainingDeadline:
    duration: 90s
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When loading a training config", t, func() {
		Convey("The definition is decoded", func() {
			cfg, err := FromYaml(writeConfig(t, testConfig))
			So(err, ShouldBeNil)
			So(cfg.Algorithm["name"], ShouldEqual, SARSA)
			So(cfg.Episodes, ShouldEqual, 250)
			So(cfg.GetHyperParamOrDefault("epsilon", 0), ShouldEqual, 0.2)
			So(cfg.GetHyperParamOrDefault("eta", 0), ShouldEqual, 0.5)
			So(cfg.GetHyperParamOrDefault("gamma", DEFAULT_GAMMA), ShouldEqual, DEFAULT_GAMMA)

			Convey("And the deadline bounds the training context", func() {
				ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
				So(err, ShouldBeNil)
				defer cancel()
				deadline, ok := ctx.Deadline()
				So(ok, ShouldBeTrue)
				So(time.Until(deadline), ShouldBeLessThanOrEqualTo, 90*time.Second)
			})
		})

		Convey("The shipped config keeps its camel-cased sections", func() {
			cfg, err := FromYaml(filepath.Join("..", "config.yaml"))
			So(err, ShouldBeNil)
			So(cfg.Algorithm["name"], ShouldEqual, QLEARNING)
			So(cfg.GetHyperParamOrDefault("maxSteps", -1), ShouldEqual, 1000)
			So(cfg.GetHyperParamOrDefault("gamma", -1), ShouldEqual, 0.9)
			So(cfg.TrainingDeadline["duration"], ShouldEqual, "30m")

			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			_, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
		})

		Convey("An envelope without a definition yields the defaults", func() {
			cfg, err := FromYaml(writeConfig(t, "kind: training\n"))
			So(err, ShouldBeNil)
			So(cfg.Algorithm["name"], ShouldEqual, QLEARNING)
			So(cfg.HyperParams, ShouldBeEmpty)
		})

		Convey("A missing file is an error", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "nope.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("A config of another kind is rejected", func() {
			_, err := FromYaml(writeConfig(t, "kind: server\ndef: {}\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("A malformed deadline is an error", func() {
			cfg := DefaultConfig()
			cfg.TrainingDeadline = map[string]string{"duration": "soon"}
			_, _, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldNotBeNil)
		})

		Convey("Without a deadline the context has none", func() {
			ctx, cancel, err := DefaultConfig().WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			_, ok := ctx.Deadline()
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Hyper parameters may be overridden", t, func() {
		cfg := DefaultConfig()
		cfg.SetHyperParam("eta", 0.3)
		cfg.SetHyperParam("eta", 0.4)
		So(len(cfg.HyperParams), ShouldEqual, 1)
		So(cfg.GetHyperParamOrDefault("eta", 0), ShouldEqual, 0.4)
	})
}
