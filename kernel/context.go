// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kernel

import "context"

type taskKey struct{}

// WithTask returns a copy of ctx that identifies h as the calling task.
func WithTask(ctx context.Context, h TaskHandle) context.Context {
	return context.WithValue(ctx, taskKey{}, h)
}

// TaskFromContext returns the calling task recorded in ctx.
func TaskFromContext(ctx context.Context) (TaskHandle, bool) {
	if ctx == nil {
		return 0, false
	}
	h, ok := ctx.Value(taskKey{}).(TaskHandle)
	return h, ok && h != 0
}
