package discover

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// gather はinputsの各要素にfnを最大limit並列で適用する。
// 結果は入力と同じ位置のスロットに書き込むため、完了順に関わらず出力順は入力順と一致する。
// fnがfalseを返した要素とパニックした要素は結果から除く。
func gather[T, R any](ctx context.Context, logger *slog.Logger, limit int, inputs []T, fn func(context.Context, T) (R, bool)) []R {
	if limit <= 0 {
		limit = 1
	}

	slots := make([]R, len(inputs))
	filled := make([]bool, len(inputs))

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

loop:
	for i, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break loop
		}

		wg.Add(1)
		go func(i int, in T) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("ソースの処理中にパニックが発生しました",
						slog.Int("index", i),
						slog.String("panic", fmt.Sprint(r)),
					)
				}
			}()

			if r, ok := fn(ctx, in); ok {
				slots[i] = r
				filled[i] = true
			}
		}(i, in)
	}

	wg.Wait()

	out := make([]R, 0, len(inputs))
	for i, ok := range filled {
		if ok {
			out = append(out, slots[i])
		}
	}
	return out
}
