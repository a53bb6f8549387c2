package scripting

import (
	lua "github.com/yuin/gopher-lua"
)

// GoToLua converts a hook argument to an LValue. Values with no Lua
// counterpart, page writers included, become nil.
func GoToLua(L *lua.LState, val any) lua.LValue {
	switch v := val.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case []string:
		tbl := L.CreateTable(len(v), 0)
		for _, s := range v {
			tbl.Append(lua.LString(s))
		}
		return tbl
	case []int64:
		tbl := L.CreateTable(len(v), 0)
		for _, n := range v {
			tbl.Append(lua.LNumber(n))
		}
		return tbl
	case []any:
		tbl := L.CreateTable(len(v), 0)
		for _, item := range v {
			tbl.Append(GoToLua(L, item))
		}
		return tbl
	case map[string]any:
		return MapToTable(L, v)
	case map[string]string:
		tbl := L.CreateTable(0, len(v))
		for k, s := range v {
			L.SetField(tbl, k, lua.LString(s))
		}
		return tbl
	}
	return lua.LNil
}

// LuaToGo converts a Lua return value to Go. Numbers become float64,
// sequences []any and other tables map[string]any.
func LuaToGo(val lua.LValue) any {
	switch v := val.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		return TableToGo(v)
	}
	return nil
}

// MapToTable converts a map to an LTable.
func MapToTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.CreateTable(0, len(m))
	for k, v := range m {
		L.SetField(tbl, k, GoToLua(L, v))
	}
	return tbl
}

// TableToGo converts an LTable. A table whose keys are exactly 1..n is a
// sequence; anything else keeps its string keys only.
func TableToGo(tbl *lua.LTable) any {
	n := tbl.MaxN()
	if n > 0 {
		count := 0
		tbl.ForEach(func(lua.LValue, lua.LValue) { count++ })
		if count == n {
			seq := make([]any, n)
			for i := range seq {
				seq[i] = LuaToGo(tbl.RawGetInt(i + 1))
			}
			return seq
		}
	}

	m := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = LuaToGo(v)
		}
	})
	return m
}
