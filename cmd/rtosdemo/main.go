// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command rtosdemo runs the rtos primitives on the hosted kernel.
//
//	rtosdemo run --scenario queue,timers --rounds 50
//	rtosdemo run --metrics-addr :9100 --serve
//	RTOSDEMO_TICK_PERIOD=2ms rtosdemo config
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
