package xmlstream

// EventKind identifies the kind of event returned by Reader.Next.
type EventKind byte

const (
	EventNone EventKind = iota
	EventStartDocument
	EventStartElement
	EventEndElement
	EventCharacters
	EventComment
	EventProcessingInstruction
	EventDTD
	EventEndDocument
)

// String returns a stable name for the event kind, suitable for logging.
func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "None"
	case EventStartDocument:
		return "StartDocument"
	case EventStartElement:
		return "StartElement"
	case EventEndElement:
		return "EndElement"
	case EventCharacters:
		return "Characters"
	case EventComment:
		return "Comment"
	case EventProcessingInstruction:
		return "ProcessingInstruction"
	case EventDTD:
		return "DTD"
	case EventEndDocument:
		return "EndDocument"
	default:
		return "Unknown"
	}
}

// parseState is the explicit state of the tokenizer's character-level
// machine. States mirror the syntactic construct being consumed.
type parseState uint8

const (
	stateDefault parseState = iota
	stateCharData
	stateMarkupSniff
	stateComment
	statePI
	stateCDATA
	stateDTD
	stateDTDInternalSubset
	stateOpenTagName
	stateOpenTagAfterName
	stateOpenTagAttrName
	stateOpenTagAfterAttrName
	stateOpenTagAfterEquals
	stateOpenTagValueSingle
	stateOpenTagValueDouble
	stateOpenTagSelfClosing
	stateCloseTagName
	stateCloseTagAfterName
)
