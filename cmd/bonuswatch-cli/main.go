package main

import (
	"bonuswatch-backend/cmd/bonuswatch-cli/commands"
	"bonuswatch-backend/lib/serviceutil"
	"bonuswatch-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "bonuswatch-cli")
	telemetry.InstrumentPerfStats(ctx)
	telemetry.InitSlog(true)
	commands.ExecuteContext(ctx)
}
