package vkframe

import "github.com/pkg/errors"

// MeshBuffers holds device-local vertex and index data.
type MeshBuffers struct {
	Vertices   *AllocatedBuffer
	Indices    *AllocatedBuffer
	IndexCount uint32
}

// UploadMesh copies raw vertex and 32-bit index data into GPU-only buffers
// through one staging buffer. Both mesh buffers are pushed onto the global
// deletion queue; the staging buffer is gone when UploadMesh returns.
func (d *Device) UploadMesh(vertices, indices []byte) (*MeshBuffers, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, invalidArgf("empty mesh")
	}
	if len(indices)%4 != 0 {
		return nil, invalidArgf("index data of %d bytes is not a multiple of 4", len(indices))
	}
	vsize, isize := uint64(len(vertices)), uint64(len(indices))

	vbuf, err := d.CreateBuffer(vsize, BufferUsageStorage|BufferUsageTransferDst|BufferUsageVertex, ResidencyGPUOnly)
	if err != nil {
		return nil, errors.Wrap(err, "vertex buffer")
	}
	ibuf, err := d.CreateBuffer(isize, BufferUsageIndex|BufferUsageTransferDst, ResidencyGPUOnly)
	if err != nil {
		vbuf.Release()
		return nil, errors.Wrap(err, "index buffer")
	}
	mesh := &MeshBuffers{Vertices: vbuf, Indices: ibuf, IndexCount: uint32(isize / 4)}

	staging, err := d.CreateBuffer(vsize+isize, BufferUsageTransferSrc, ResidencyCPUToGPU)
	if err != nil {
		ibuf.Release()
		vbuf.Release()
		return nil, errors.Wrap(err, "staging buffer")
	}
	defer staging.Release()

	if err := staging.Write(0, vertices); err != nil {
		ibuf.Release()
		vbuf.Release()
		return nil, err
	}
	if err := staging.Write(vsize, indices); err != nil {
		ibuf.Release()
		vbuf.Release()
		return nil, err
	}
	err = d.Immediate(func(cmd CommandBuffer) error {
		d.drv.CmdCopyBuffer(cmd, staging.Buffer, vbuf.Buffer, BufferCopy{Size: vsize})
		d.drv.CmdCopyBuffer(cmd, staging.Buffer, ibuf.Buffer, BufferCopy{SrcOffset: vsize, Size: isize})
		return nil
	})
	if err != nil {
		ibuf.Release()
		vbuf.Release()
		return nil, errors.Wrap(err, "upload mesh")
	}

	d.deletions.Push(vbuf)
	d.deletions.Push(ibuf)
	return mesh, nil
}
