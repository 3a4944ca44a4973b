package material

// PathVolumeVectorSize bounds the per-path volume stack. The stack is a
// fixed array copied per vertex; profiling puts the copy cost well below
// one BSDF evaluation.
const PathVolumeVectorSize = 8

// PathVolumeInfo tracks the volumes currently containing a path vertex.
// Invariant: the current volume is always the highest-priority member of
// the stack.
type PathVolumeInfo struct {
	currentVolume Volume
	volumes       [PathVolumeVectorSize]Volume
	volumeCount   int

	// scatteredStart is set after the first medium scatter on a path
	// segment so single-scattering volumes stop there
	scatteredStart bool
}

// NewPathVolumeInfo returns an empty stack with the given default volume
func NewPathVolumeInfo(defaultVolume Volume) PathVolumeInfo {
	return PathVolumeInfo{currentVolume: defaultVolume}
}

// CurrentVolume returns the volume containing the current vertex
func (pvi *PathVolumeInfo) CurrentVolume() Volume {
	return pvi.currentVolume
}

// ScatteredStart reports whether the path already scattered in the medium
func (pvi *PathVolumeInfo) ScatteredStart() bool {
	return pvi.scatteredStart
}

// SetScatteredStart flags the first medium scatter event
func (pvi *PathVolumeInfo) SetScatteredStart(v bool) {
	pvi.scatteredStart = v
}

// AddVolume pushes a volume and re-resolves the current one by priority
func (pvi *PathVolumeInfo) AddVolume(v Volume) {
	if v == nil || pvi.volumeCount == PathVolumeVectorSize {
		return
	}
	pvi.volumes[pvi.volumeCount] = v
	pvi.volumeCount++

	if pvi.currentVolume == nil || v.Priority() > pvi.currentVolume.Priority() {
		pvi.currentVolume = v
	}
}

// RemoveVolume pops one instance of the volume and re-resolves the
// current one
func (pvi *PathVolumeInfo) RemoveVolume(v Volume) {
	if v == nil || pvi.volumeCount == 0 {
		return
	}

	for i := pvi.volumeCount - 1; i >= 0; i-- {
		if pvi.volumes[i] == v {
			copy(pvi.volumes[i:], pvi.volumes[i+1:pvi.volumeCount])
			pvi.volumeCount--
			break
		}
	}

	pvi.currentVolume = nil
	for i := 0; i < pvi.volumeCount; i++ {
		if pvi.currentVolume == nil || pvi.volumes[i].Priority() > pvi.currentVolume.Priority() {
			pvi.currentVolume = pvi.volumes[i]
		}
	}
}

// Update adjusts the stack after a surface scattering event: transmitting
// into an object pushes its interior volume, transmitting out pops it
func (pvi *PathVolumeInfo) Update(event BSDFEvent, bsdf *BSDF) {
	if !event.Has(TransmitEvent) {
		return
	}

	if bsdf.HitPoint.IntoObject {
		pvi.AddVolume(bsdf.Material.Base().Interior)
	} else {
		pvi.RemoveVolume(bsdf.Material.Base().Interior)
	}
}

// ContinueToTrace applies the volume priority rule: the surface is
// skipped exactly when entering an object whose interior has a higher
// priority than the current volume, or when leaving an object that is not
// the current volume
func (pvi *PathVolumeInfo) ContinueToTrace(bsdf *BSDF) bool {
	if !bsdf.CanTransmit() {
		return false
	}

	interior := bsdf.Material.Base().Interior
	if interior == nil {
		return false
	}

	if bsdf.HitPoint.IntoObject {
		return pvi.currentVolume != nil && interior.Priority() > pvi.currentVolume.Priority()
	}
	return pvi.currentVolume != nil && pvi.currentVolume != interior
}

// SimulateAddVolume returns a copy of the stack with the volume pushed,
// used by shadow-ray transmittance evaluation
func (pvi PathVolumeInfo) SimulateAddVolume(v Volume) PathVolumeInfo {
	pvi.AddVolume(v)
	return pvi
}

// SimulateRemoveVolume returns a copy of the stack with the volume popped
func (pvi PathVolumeInfo) SimulateRemoveVolume(v Volume) PathVolumeInfo {
	pvi.RemoveVolume(v)
	return pvi
}
