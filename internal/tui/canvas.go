package tui

import (
	"math"
	"strings"

	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
	"gonum.org/v1/gonum/spatial/r3"
)

// Top-down bounds of the drawn area in world metres.
const (
	minX = -1.0
	maxX = 1.0
	minZ = -0.1
	maxZ = 2.6
)

// canvas is a top-down character map: x runs left to right and z (away from
// the participant) runs bottom to top.
type canvas struct {
	w, h  int
	cells [][]rune
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = []rune(strings.Repeat(" ", w))
	}
	return c
}

func (c *canvas) project(p r3.Vec) (int, int) {
	x := int(math.Round((p.X - minX) / (maxX - minX) * float64(c.w-1)))
	y := int(math.Round((maxZ - p.Z) / (maxZ - minZ) * float64(c.h-1)))
	return x, y
}

func (c *canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

func (c *canvas) plot(p r3.Vec, r rune) {
	x, y := c.project(p)
	c.set(x, y, r)
}

func (c *canvas) line(from, to r3.Vec, r rune) {
	x1, y1 := c.project(from)
	x2, y2 := c.project(to)
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// ring draws a circle of radius metres around center.
func (c *canvas) ring(center r3.Vec, radius float64, r rune) {
	for a := 0.0; a < 2*math.Pi; a += math.Pi / 16 {
		c.plot(r3.Vec{X: center.X + radius*math.Cos(a), Z: center.Z + radius*math.Sin(a)}, r)
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	return b.String()
}

// drawScene renders zones, objects, the ray and the tracked poses of s.
func drawScene(c *canvas, tb *testbed.Testbed, s testbed.Snapshot) {
	for _, z := range tb.Evaluator.Zones() {
		mark := '·'
		if z.Matched {
			mark = '○'
		}
		c.ring(z.Center, z.Radius, mark)
		if z.Label != "" {
			c.plot(z.Center, []rune(strings.ToUpper(z.Label))[0])
		}
	}
	if s.Ray.Visible {
		c.line(s.Ray.From, s.Ray.To, '-')
	}
	for _, e := range tb.Objects() {
		r := '●'
		if e.ID == s.Held {
			r = '◆'
		} else if e.ID == s.Highlighted {
			r = '◎'
		}
		c.plot(e.Pose.Position, r)
	}
	if s.Reach != nil {
		c.plot(s.VirtualPoint, '*')
	}
	c.plot(s.HMD.Position, 'H')
	c.plot(s.Controller.Position, 'c')
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
