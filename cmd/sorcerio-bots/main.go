// sorcerio-bots 向 sorcerio 服务端接入无界面玩家并随机转向，用于压测与长稳测试
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"

	"github.com/Flying-Toast/sorcerio/client"
	"github.com/Flying-Toast/sorcerio/game"
	"github.com/Flying-Toast/sorcerio/protocol"
)

const (
	frameInterval = time.Second / 60
	viewportW     = 1280
	viewportH     = 720
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

type totals struct {
	mu        sync.Mutex
	connected int
	failed    int
	stats     client.Stats
}

func (t *totals) add(st client.Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected++
	t.stats.BytesIn += st.BytesIn
	t.stats.BytesOut += st.BytesOut
	t.stats.Updates += st.Updates
	t.stats.InputsSent += st.InputsSent
	t.stats.MalformedRecv += st.MalformedRecv
}

func (t *totals) fail() {
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
}

func main() {
	addr := flag.String("addr", "http://localhost:80", "server base URL")
	room := flag.String("room", "", "room to join (empty for the default room)")
	count := flag.Int("n", 10, "number of bots")
	parallel := flag.Int("parallel", 50, "maximum bots connected at once")
	duration := flag.Duration("duration", 30*time.Second, "how long each bot plays")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta, err := client.FetchMeta(ctx, *addr, *room)
	if err != nil {
		sugar.Fatalw("could not load server metadata", "addr", *addr, "error", err)
	}
	wsURL, err := client.WSURL(*addr, *room)
	if err != nil {
		sugar.Fatalw("bad server address", "addr", *addr, "error", err)
	}

	var sum totals
	start := time.Now()
	wg := sizedwaitgroup.New(*parallel)
	for i := 0; i < *count; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add()
		go func(n int) {
			defer wg.Done()
			st, err := runBot(ctx, wsURL, meta, fmt.Sprintf("bot%d", n), *duration, sugar)
			if err != nil {
				sugar.Warnw("bot failed", "bot", n, "error", err)
				sum.fail()
				return
			}
			sum.add(st)
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Fprintf(os.Stdout, "%d bots ran for %s (%d failed)\n",
		sum.connected, durafmt.Parse(elapsed).LimitFirstN(2).Format(shortUnits), sum.failed)
	fmt.Fprintf(os.Stdout, "received %s in %d updates, sent %s carrying %d inputs\n",
		humanize.Bytes(sum.stats.BytesIn), sum.stats.Updates,
		humanize.Bytes(sum.stats.BytesOut), sum.stats.InputsSent)
	if sum.stats.MalformedRecv > 0 {
		fmt.Fprintf(os.Stdout, "%d malformed server messages\n", sum.stats.MalformedRecv)
	}
}

// runBot 运行一个无界面会话，直到 d 到期或 ctx 取消
func runBot(ctx context.Context, wsURL string, meta protocol.Meta, nick string, d time.Duration, logger *zap.SugaredLogger) (client.Stats, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := client.Dial(dialCtx, wsURL, protocol.Join{Nickname: nick}, logger.With("bot", nick))
	cancel()
	if err != nil {
		return client.Stats{}, err
	}
	defer conn.Close()

	s := client.NewSession(meta, logger.With("bot", nick))
	s.SetViewport(viewportW, viewportH)
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(len(nick))))

	deadline := time.After(d)
	frames := time.NewTicker(frameInterval)
	defer frames.Stop()
	steer := time.NewTicker(time.Second)
	defer steer.Stop()

	for {
		select {
		case <-ctx.Done():
			return conn.Snapshot(), nil
		case <-deadline:
			return conn.Snapshot(), nil
		case <-steer.C:
			s.PointerMoved(rng.Float64()*viewportW, rng.Float64()*viewportH)
			if rng.IntN(4) == 0 {
				dir := game.ScrollLeft
				if rng.IntN(2) == 0 {
					dir = game.ScrollRight
				}
				s.Scroll(dir)
			}
		case now := <-frames.C:
			if err := conn.Drain(s); err != nil {
				return conn.Snapshot(), err
			}
			s.Frame(now)
			if err := conn.SendInputs(s.FlushInputs()); err != nil {
				return conn.Snapshot(), err
			}
		}
	}
}
