//go:build !cuda

package compute

// CUDABackend without the cuda build tag reports unavailable and
// defers to the CPU path.
type CUDABackend struct {
	cpu *CPUBackend
}

func NewCUDABackend() *CUDABackend {
	return &CUDABackend{cpu: NewCPUBackend()}
}

func (c *CUDABackend) Name() string    { return "cuda (not available)" }
func (c *CUDABackend) Available() bool { return false }
func (c *CUDABackend) Cleanup()        {}

func (c *CUDABackend) Eval(req *Request) (Result, error) {
	return c.cpu.Eval(req)
}
