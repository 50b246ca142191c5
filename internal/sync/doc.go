// Package sync implements the forward and reverse synchronization between a
// Notion workspace and the local task snapshot.
//
// Forward sync
//
// A forward sync runs in three steps, all sequential:
//
//	projects database ──► ProjectResolver ──► map[id]Project
//	                                              │
//	tasks database ────► TaskSynchronizer ◄───────┘
//	                          │  (per record: Field Extractor,
//	                          │   CommentAggregator, Normalizer)
//	                          ▼
//	                   snapshot.Write (atomic)
//
// Property decoding never fails a row: every column has a default (see the
// schema package). A request failure while paging tasks aborts the run and
// keeps the previous snapshot; a failure while paging projects only loses
// the project join for the remaining pages.
//
// Reverse sync
//
// Writer.Update sends one field to one page. Observation edits are posted as
// comments so the thread keeps its history, falling back to overwriting the
// notes property when commenting fails. Status edits are translated to the
// workspace's native option label.
//
// Usage
//
//	client := notion.NewClient(token)
//	layout := sync.ProjectsLayout(projectsDB, tasksDB)
//	s := sync.New(client, sync.Options{Layout: layout, SnapshotPath: "tarefas.csv"})
//
//	res, err := s.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Message)
//
//	out := s.Update(ctx, pageID, sync.FieldStatus, "Blocked")
//	if !out.OK {
//	    return errors.New(out.Message)
//	}
package sync
