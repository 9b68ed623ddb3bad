package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestConversationEntry_Fields(t *testing.T) {
	typ := reflect.TypeOf(ConversationEntry{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ThreadID", "uniqueIndex:idx_thread_seq")
	assertGormTag(t, typ, "Sequence", "uniqueIndex:idx_thread_seq")
	assertGormTag(t, typ, "Role", "size:16")
	assertGormTag(t, typ, "Content", "type:mediumtext")
	assertGormTag(t, typ, "CapabilityTag", "size:32")
}

func TestLoadNegotiation_Fields(t *testing.T) {
	typ := reflect.TypeOf(LoadNegotiation{})

	assertGormTag(t, typ, "LoadID", "primaryKey")
	assertGormTag(t, typ, "ThreadID", "index")
	assertGormTag(t, typ, "Status", "default:new")
	assertGormTag(t, typ, "Version", "default:0")
	assertGormTag(t, typ, "Warnings", "foreignKey:LoadID")
}

func TestWarning_Fields(t *testing.T) {
	typ := reflect.TypeOf(Warning{})

	assertGormTag(t, typ, "LoadID", "index")
	assertGormTag(t, typ, "Severity", "default:info")
	assertGormTag(t, typ, "Resolved", "default:false")
}

func TestCapabilityLog_Fields(t *testing.T) {
	typ := reflect.TypeOf(CapabilityLog{})

	assertGormTag(t, typ, "ThreadID", "index:idx_thread_capability")
	assertGormTag(t, typ, "Capability", "index:idx_thread_capability")
	assertGormTag(t, typ, "Content", "type:mediumtext")
}

func TestRoleConstants(t *testing.T) {
	roles := []string{RoleBroker, RoleSystem, RoleAgent}
	want := []string{"broker", "system", "agent"}
	for i, r := range roles {
		if r != want[i] {
			t.Errorf("role[%d] = %q, want %q", i, r, want[i])
		}
	}
}

func TestSeverityConstants(t *testing.T) {
	if SeverityInfo != "info" || SeverityCaution != "caution" || SeverityBlocking != "blocking" {
		t.Errorf("severity constants = %q/%q/%q", SeverityInfo, SeverityCaution, SeverityBlocking)
	}
}
