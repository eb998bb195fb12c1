package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stateToolDef = mcp.NewTool("gallery_state",
	mcp.WithDescription("Show the committed gallery: headline text, images, background audio, autoplay state, and whether an edit session is open."),
)

var openToolDef = mcp.NewTool("gallery_open",
	mcp.WithDescription("Open an edit session seeded from the committed gallery. Opening while a session is open keeps the current draft."),
)

var setTextToolDef = mcp.NewTool("gallery_set_text",
	mcp.WithDescription(`Set the draft headline. "A; B" or "A, B" renders A in italics.`),
	mcp.WithString("text", mcp.Required(), mcp.Description("Headline text")),
)

var setImageToolDef = mcp.NewTool("gallery_set_image",
	mcp.WithDescription("Upload a local image file into a draft slot (0-9). Images are capped at 10 MB."),
	mcp.WithNumber("index", mcp.Required(), mcp.Description("Slot index, 0-9")),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the image file")),
	mcp.WithString("media_type", mcp.Description("Declared media type; inferred from the file when omitted")),
	mcp.WithString("alt", mcp.Description("Alt text; defaults to \"Image N\"")),
)

var removeImageToolDef = mcp.NewTool("gallery_remove_image",
	mcp.WithDescription("Empty a draft image slot."),
	mcp.WithNumber("index", mcp.Required(), mcp.Description("Slot index, 0-9")),
)

var setAudioToolDef = mcp.NewTool("gallery_set_audio",
	mcp.WithDescription("Upload a local audio file as the draft background track. Audio is capped at 20 MB."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the audio file")),
	mcp.WithString("media_type", mcp.Description("Declared media type; inferred from the file when omitted")),
	mcp.WithString("name", mcp.Description("Display name; defaults to the file name")),
)

var clearAudioToolDef = mcp.NewTool("gallery_clear_audio",
	mcp.WithDescription("Remove the draft background track."),
)

var saveToolDef = mcp.NewTool("gallery_save",
	mcp.WithDescription("Commit the draft. Empty slots are dropped and the session closes."),
)

var cancelToolDef = mcp.NewTool("gallery_cancel",
	mcp.WithDescription("Discard the draft and release its uploads."),
)
