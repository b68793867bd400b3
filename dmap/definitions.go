package dmap

// Tags declares every code the bridge emits or parses.
var Tags = Definitions{
	// generic DMAP
	"mstt": TypeUint32, // status
	"miid": TypeUint32, // item id
	"minm": TypeString, // item name
	"mlog": TypeContainer,
	"mlid": TypeUint32, // session id
	"mlcl": TypeContainer,
	"mlit": TypeContainer,
	"mdcl": TypeContainer,
	"mtco": TypeUint32,
	"mrco": TypeUint32,
	"mpro": TypeUint32,
	"mstm": TypeUint32,
	"msdc": TypeUint32,
	"mslr": TypeBool,
	"msal": TypeBool,
	"mstc": TypeUint32,
	"msto": TypeUint32,
	"msed": TypeUint16,
	"msup": TypeUint16,
	"mspi": TypeUint16,
	"msex": TypeUint16,
	"msbr": TypeUint16,
	"msqy": TypeUint16,
	"msix": TypeUint16,
	"mscu": TypeUint32,
	"msml": TypeUint64,
	"msrv": TypeContainer,

	// DAAP / AppleTV
	"apro": TypeUint32,
	"aeSV": TypeUint32,
	"aeFP": TypeUint8,
	"arFR": TypeUint8,
	"aeFR": TypeUint32,
	"aeSX": TypeUint32,
	"atSV": TypeUint32,
	"atCV": TypeUint32,
	"ated": TypeUint16,
	"asgr": TypeUint16,
	"asse": TypeUint32,

	// DACP control
	"caci": TypeContainer,
	"capr": TypeUint32,
	"cass": TypeUint32,
	"caov": TypeUint32,
	"casu": TypeUint32,
	"ceSG": TypeUint32,
	"ceDR": TypeUint32,
	"ceSX": TypeUint32,
	"ceQR": TypeContainer,
	"ceQE": TypeContainer,
	"cmst": TypeContainer,
	"cmsr": TypeUint32,
	"cmik": TypeUint32,
	"cmpr": TypeUint32,
	"cmsp": TypeUint32,
	"cmsb": TypeUint32,
	"cmsv": TypeUint32,
	"cmsc": TypeUint32,
	"cmrl": TypeUint32,

	// pairing
	"cmpa": TypeContainer,
	"cmpg": TypeUint64, // pairing guid
	"cmnm": TypeString, // device name
	"cmty": TypeString, // device type

	// keyboard / control prompt
	"cmcp": TypeContainer,
	"cmce": TypeString, // message key
	"cmcv": TypeString, // message value
	"cmbe": TypeString, // event name
	"cmte": TypeString, // event text
	"cmcc": TypeString,
}
