//go:build !darwin || !cgo

package trust

type systemGate struct{}

func (systemGate) Check(prompt bool) Level {
	return Untrusted
}
