package main

import (
    "fmt"
    "os"
    "strconv"

    "silt/internal/analysis"
    "silt/internal/report"
    "silt/internal/undump"
)

func main() {
    if len(os.Args) < 2 {
        fmt.Println("usage: go run . <chunk.luac> [function index]")
        os.Exit(1)
    }
    file := os.Args[1]
    data, err := os.ReadFile(file)
    if err != nil {
        fmt.Printf("read error: %v\n", err)
        os.Exit(1)
    }
    if !undump.IsChunk(data) {
        fmt.Println("not a binary chunk, compile it first")
        os.Exit(1)
    }
    root, err := undump.Load(data, file)
    if err != nil {
        fmt.Printf("load error: %v\n", err)
        os.Exit(1)
    }
    rep := analysis.Analyze(root)

    idx := 0
    if len(os.Args) > 2 {
        if v, parseErr := strconv.Atoi(os.Args[2]); parseErr == nil {
            idx = v
        }
    }
    fmt.Printf("%s: %d functions, %d globals\n", file, len(rep.Functions), len(rep.Globals))
    dumpFunction(rep, idx)
}

func dumpFunction(rep *report.Report, idx int) {
    if rep == nil || idx < 0 || idx >= len(rep.Functions) {
        fmt.Printf("function %d not found\n", idx)
        return
    }
    fn := &rep.Functions[idx]
    fmt.Printf("function %d source=%q line=%d params=%v vararg=%v method=%v return=%d\n",
        idx, fn.Source, fn.LineDefined, fn.ParamNames, fn.IsVararg, fn.IsMethod, fn.ReturnKind)
    fmt.Printf("table: arr=%d hash=%d bytes=%d closures=%v\n",
        fn.Table.ArraySize, fn.Table.HashSize, fn.Table.EstimatedBytes, fn.Table.ContainsClosures)
    for _, cs := range fn.CallSites {
        fmt.Printf("call line=%d kind=%d callee=%q args=%d tail=%v\n", cs.Line, cs.Kind, cs.Callee, cs.ArgCount, cs.IsTail)
    }
    for _, rd := range fn.Reads {
        fmt.Printf("read %s.%s\n", rd.TableName, rd.FieldName)
    }
    for _, g := range rep.Globals {
        if g.IsFunction && g.FunctionIndex == idx {
            fmt.Printf("bound to global %q\n", g.Name)
        }
    }
}
