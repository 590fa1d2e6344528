package worker

import (
	"testing"

	"go.calcjobs.dev/calcjobs/cmd/providers/providerstest"
	"go.uber.org/fx"
)

func TestApp(t *testing.T) {
	providerstest.Validate(t, fx.Invoke(Run))
}
