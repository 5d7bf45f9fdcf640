// Package render 用 ebiten 绘制 client.Session，并把指针与滚轮输入交回给它；本身不含游戏规则
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Flying-Toast/sorcerio/client"
	"github.com/Flying-Toast/sorcerio/game"
)

// ErrQuit 玩家按下 Escape 时结束运行循环
var ErrQuit = errors.New("quit")

const (
	gridSpacing  = 100
	playerRadius = 24
	slotSize     = 48
	slotGap      = 6
)

var (
	backgroundColor = color.RGBA{0x1b, 0x1f, 0x2a, 0xff}
	gridColor       = color.RGBA{0x2c, 0x33, 0x44, 0xff}
	borderColor     = color.RGBA{0xc0, 0x3a, 0x2b, 0xff}
	localColor      = color.RGBA{0x4f, 0xc3, 0xf7, 0xff}
	remoteColor     = color.RGBA{0xff, 0xb7, 0x4d, 0xff}
	ghostColor      = color.RGBA{0xff, 0xff, 0xff, 0x40}
	slotColor       = color.RGBA{0x33, 0x33, 0x33, 0xd0}
	selectedColor   = color.RGBA{0xff, 0xe0, 0x82, 0xff}
)

// Game 把 session 接入 ebiten 的 Update/Draw 循环；网络消息只在 Update 开头处理，不在 Draw 中处理
type Game struct {
	conn    *client.Conn
	session *client.Session
	log     *zap.SugaredLogger

	wheelLimiter *rate.Limiter
	hotbar       []game.Item
	showGhost    bool
	width        int
	height       int
}

func NewGame(conn *client.Conn, session *client.Session, log *zap.SugaredLogger) *Game {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Game{
		conn:         conn,
		session:      session,
		log:          log,
		wheelLimiter: rate.NewLimiter(rate.Every(125*time.Millisecond), 1),
	}
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ErrQuit
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		g.showGhost = !g.showGhost
	}

	if err := g.conn.Drain(g.session); err != nil {
		if cerr := g.conn.Err(); cerr != nil {
			return fmt.Errorf("%w: %v", err, cerr)
		}
		return err
	}

	x, y := ebiten.CursorPosition()
	g.session.PointerMoved(float64(x), float64(y))
	if _, wy := ebiten.Wheel(); wy != 0 && g.wheelLimiter.Allow() {
		if wy > 0 {
			g.session.Scroll(game.ScrollLeft)
		} else {
			g.session.Scroll(game.ScrollRight)
		}
	}

	g.session.Frame(time.Now())
	if inv, ok := g.session.TakeInventoryChange(); ok {
		g.hotbar = inv
	}
	if err := g.conn.SendInputs(g.session.FlushInputs()); err != nil {
		return err
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	me, ok := g.session.LocalPlayer()
	if !ok {
		ebitenutil.DebugPrint(screen, "joining...")
		return
	}

	// 镜头以预测的本地玩家为中心
	offX := float64(g.width)/2 - me.X
	offY := float64(g.height)/2 - me.Y
	g.drawWorld(screen, g.session.Map(), offX, offY)

	for _, p := range g.session.RemotePlayers() {
		g.drawPlayer(screen, p, offX, offY, remoteColor)
	}
	if g.showGhost {
		if c, ok := g.session.Confirmed(); ok {
			vector.DrawFilledCircle(screen, float32(c.X+offX), float32(c.Y+offY), playerRadius, ghostColor, true)
		}
	}
	g.drawPlayer(screen, me, offX, offY, localColor)
	g.drawHotbar(screen, me.SelectedItemIndex)

	ebitenutil.DebugPrint(screen, fmt.Sprintf("x %.0f  y %.0f  pending %d  fps %.0f",
		me.X, me.Y, len(g.session.Pending()), ebiten.ActualFPS()))
}

func (g *Game) drawWorld(screen *ebiten.Image, m game.Map, offX, offY float64) {
	for x := 0.0; x <= m.Width; x += gridSpacing {
		vector.StrokeLine(screen, float32(x+offX), float32(offY), float32(x+offX), float32(m.Height+offY), 1, gridColor, false)
	}
	for y := 0.0; y <= m.Height; y += gridSpacing {
		vector.StrokeLine(screen, float32(offX), float32(y+offY), float32(m.Width+offX), float32(y+offY), 1, gridColor, false)
	}
	vector.StrokeRect(screen, float32(offX), float32(offY), float32(m.Width), float32(m.Height), 3, borderColor, false)
}

func (g *Game) drawPlayer(screen *ebiten.Image, p game.PlayerEntity, offX, offY float64, clr color.Color) {
	cx, cy := float32(p.X+offX), float32(p.Y+offY)
	vector.DrawFilledCircle(screen, cx, cy, playerRadius, clr, true)
	tipX := cx + float32(math.Cos(p.Angle))*playerRadius*1.5
	tipY := cy + float32(math.Sin(p.Angle))*playerRadius*1.5
	vector.StrokeLine(screen, cx, cy, tipX, tipY, 3, clr, true)
	ebitenutil.DebugPrintAt(screen, p.Nickname, int(cx)-len(p.Nickname)*3, int(cy)-playerRadius-18)
}

func (g *Game) drawHotbar(screen *ebiten.Image, selected int) {
	n := len(g.hotbar)
	if n == 0 {
		return
	}
	total := n*slotSize + (n-1)*slotGap
	x0 := (g.width - total) / 2
	y0 := g.height - slotSize - 16
	for i, it := range g.hotbar {
		x := float32(x0 + i*(slotSize+slotGap))
		vector.DrawFilledRect(screen, x, float32(y0), slotSize, slotSize, slotColor, false)
		if i == selected {
			vector.StrokeRect(screen, x, float32(y0), slotSize, slotSize, 3, selectedColor, false)
		}
		if !it.Empty() {
			ebitenutil.DebugPrintAt(screen, string(it.Name), int(x)+4, y0+slotSize/2-8)
		}
	}
}

// Layout 按 1:1 使用窗口尺寸，移动输入与玩家看到的像素一致
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.session.SetViewport(float64(outsideWidth), float64(outsideHeight))
	}
	return outsideWidth, outsideHeight
}
