package diag

type Note struct {
	Pos Pos
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Pos      Pos
	Notes    []Note
}

func New(sev Severity, code Code, pos Pos, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Pos:      pos,
		Message:  msg,
		Notes:    nil,
	}
}

func NewError(code Code, pos Pos, msg string) Diagnostic {
	return New(SevError, code, pos, msg)
}

func NewWarning(code Code, pos Pos, msg string) Diagnostic {
	return New(SevWarning, code, pos, msg)
}

func (d Diagnostic) WithNote(pos Pos, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Pos: pos, Msg: msg})
	return d
}
