package display

// Output is the compositor's renderable display resource bound to a
// head. The engine only drives its lifecycle and reads its geometry; the
// rendering implementation lives in the output layer.
//
// All calls are synchronous. A failed call leaves the output unchanged;
// the engine does not roll back earlier calls of the same pass.
type Output interface {
	Name() string

	// Position and size in local compositing space.
	Position() (x, y int32)
	Size() (width, height uint32)
	Scale() int

	Enable() error
	Disable()

	// SetScale sets the output scale. Outputs reject in-place scale
	// mutation while enabled; the engine disables first and passes 0 to
	// reset before assigning the new value.
	SetScale(scale int)

	// SetNativeMode switches the output's native mode. Width and height
	// are in client pixels; the resulting local size is width/scale by
	// height/scale.
	SetNativeMode(width, height uint32, scale int) error

	SetPhysicalSize(widthMm, heightMm uint32)
	SetTransformIdentity()

	// Move repositions the output in local space. This is what notifies
	// downstream consumers of the new position.
	Move(x, y int32) error
}

// OutputManager is the external collaborator owning Output resources.
// CreateHead announces a new head; binding an Output to it is deferred
// until the manager next enables one, at which point it calls back into
// Manager.HandleOutputEnabled with the binding.
type OutputManager interface {
	CreateHead(head *Head) error
	DestroyHead(head *Head)
}
