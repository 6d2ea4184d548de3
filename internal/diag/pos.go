package diag

import "fmt"

// Pos locates a diagnostic inside an analyzed chunk. Line is 0 when the
// chunk carries no debug information; PC is -1 when the finding is not tied
// to a single instruction.
type Pos struct {
	Chunk string
	Line  int
	PC    int
}

func (p Pos) String() string {
	if p.PC < 0 {
		return fmt.Sprintf("%s:%d", p.Chunk, p.Line)
	}
	return fmt.Sprintf("%s:%d@%d", p.Chunk, p.Line, p.PC)
}
