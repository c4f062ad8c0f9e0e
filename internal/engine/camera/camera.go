// Package camera provides the orbit camera used by the model viewer.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/fasterobj/internal/engine/model"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	// Center point to orbit around
	Center mgl32.Vec3

	// Spherical coordinates
	Distance float32 // Distance from center
	Pitch    float32 // Vertical angle, radians
	Yaw      float32 // Horizontal angle, radians

	// Perspective
	FOV         float32 // Vertical, degrees
	Near, Far   float32
	MinPitch    float32
	MaxPitch    float32
	MinDistance float32
	MaxDistance float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32
	PanSensitivity  float32
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera(fov float32) *OrbitCamera {
	return &OrbitCamera{
		Distance:        5,
		Pitch:           0.4,
		Yaw:             0.6,
		FOV:             fov,
		Near:            0.01,
		Far:             100,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		MinDistance:     0.01,
		MaxDistance:     1e6,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		PanSensitivity:  0.002,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	cp := math32.Cos(c.Pitch)
	offset := mgl32.Vec3{
		c.Distance * cp * math32.Sin(c.Yaw),
		c.Distance * math32.Sin(c.Pitch),
		c.Distance * cp * math32.Cos(c.Yaw),
	}
	return c.Center.Add(offset)
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix returns the perspective projection for the given aspect
// ratio.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), aspect, c.Near, c.Far)
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.Yaw -= deltaX * c.DragSensitivity
	c.Pitch = mgl32.Clamp(c.Pitch+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = mgl32.Clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// HandlePan moves the center in the view plane. Speed scales with distance.
func (c *OrbitCamera) HandlePan(deltaX, deltaY float32) {
	forward := c.Center.Sub(c.Position()).Normalize()
	right := forward.Cross(mgl32.Vec3{0, 1, 0})
	if right.Len() < 1e-6 {
		right = mgl32.Vec3{1, 0, 0}
	}
	right = right.Normalize()
	up := right.Cross(forward)

	speed := c.Distance * c.PanSensitivity
	c.Center = c.Center.Sub(right.Mul(deltaX * speed)).Add(up.Mul(deltaY * speed))
}

// FitToBounds centers the camera on b and backs off until the bounding
// sphere fills the vertical field of view.
func (c *OrbitCamera) FitToBounds(b model.Bounds) {
	center := b.Center()
	c.Center = mgl32.Vec3{center[0], center[1], center[2]}

	radius := b.Radius()
	if radius <= 0 {
		radius = 1
	}
	c.Distance = radius / math32.Sin(mgl32.DegToRad(c.FOV)/2)
	c.MinDistance = radius * 0.01
	c.MaxDistance = radius * 100
	c.Near = c.Distance * 0.01
	c.Far = c.Distance + radius*100
}
