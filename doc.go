// Package ragline provides an embedded client for the ragline retrieval
// engine: document ingestion into a Redis vector index and cited question
// answering over the indexed corpus, optionally augmented with live web
// research.
//
//	client, _ := ragline.New(
//	    ragline.WithRedis("localhost:6379", ""),
//	    ragline.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	defer client.Close()
//
//	receipt, _ := client.Ingest(ctx, ragline.IngestRequest{
//	    Title:   "Operations Handbook",
//	    Format:  "markdown",
//	    Content: handbook,
//	})
//
//	answer, _ := client.Ask(ctx, ragline.AskRequest{
//	    Query:    "What is the on-call escalation policy?",
//	    UseIndex: true,
//	})
//	fmt.Println(answer.Markdown)
//
// Re-ingesting under the same document ID supersedes the previous version
// atomically: queries never observe a mix of old and new chunks.
//
// The HTTP service in cmd/ragline exposes the same pipelines over REST.
package ragline
