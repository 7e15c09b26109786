// Package audit records organization activity.
//
// # Overview
//
// Mutating operations (issuing or revoking invite links, admitting members, moving a job or
// application between statuses) append an Activity to the organization's activity log.
// Recording is fire-and-forget: the primary operation has already committed, and a failed
// audit write is logged and counted but never reported to the caller or rolled back.
//
// # Components
//
//	Sink           synchronous destination (DBSink, LogSink, MultiSink)
//	Recorder       what services call; never blocks on or fails because of the sink
//	AsyncRecorder  Recorder writing to a Sink from background goroutines
//	MemoryRecorder Recorder keeping entries in memory
//
// # Usage Example
//
//	sink, _ := audit.NewDBSink(db)
//	rec := audit.NewAsyncRecorder(sink, logger, audit.WithTimeout(5*time.Second))
//	defer rec.Close()
//
//	rec.Record(ctx, &audit.Activity{
//		OrganizationID: orgID,
//		ActorID:        userID,
//		Action:         audit.ActionCreated,
//		ResourceType:   audit.ResourceMember,
//		ResourceID:     memberID,
//		Metadata:       map[string]interface{}{"joinMethod": "invite_link"},
//	})
//
// Close waits for in-flight writes; call it during shutdown.
package audit
