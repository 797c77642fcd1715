package cellarray

import "testing"

func TestTryStartMigrationIsIdempotent(t *testing.T) {
	a := New[int, int](8)
	tbl := a.table.Load()

	m1 := a.tryStartMigration(tbl, tbl.Len()*2)
	m2 := a.tryStartMigration(tbl, tbl.Len()*2)
	if m1 != m2 {
		t.Fatal("expected second tryStartMigration to return the already-installed migration")
	}
}

func TestHelpMigrateDrainsOldTable(t *testing.T) {
	a := New[int, int](1)
	for i := 0; i < 500; i++ {
		a.Insert(i, i)
	}

	tbl := a.table.Load()
	mig := a.tryStartMigration(tbl, tbl.Len()*2)
	for !a.helpMigrate(mig) {
	}

	if a.table.Load() != mig.next {
		t.Fatal("expected table to be swapped to the migration's next generation")
	}
	if a.mig.Load() != nil {
		t.Fatal("expected migration slot cleared after completion")
	}
	for i := 0; i < 500; i++ {
		if v, ok := a.Read(i, func(v int) int { return v }); !ok || v != i {
			t.Fatalf("key %d lost across migration: got %v,%v", i, v, ok)
		}
	}
}
